package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	httpctx "github.com/dtroode/socialhub/internal/api/http/context"
	"github.com/dtroode/socialhub/internal/api/http/router"
	httpServer "github.com/dtroode/socialhub/internal/api/http/server"
	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/config"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/metrics"
	"github.com/dtroode/socialhub/internal/model"
	"github.com/dtroode/socialhub/internal/repository/postgres"
	"github.com/dtroode/socialhub/internal/server"
	"github.com/dtroode/socialhub/internal/service"
	storage "github.com/dtroode/socialhub/internal/storage/minio"
	"github.com/dtroode/socialhub/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	clock := clockwork.NewRealClock()

	userRepo := postgres.NewUserRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	verificationRepo := postgres.NewVerificationRepository(db)
	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL)

	tokenService := service.NewTokenService(tokenManager, refreshTokenRepo, clock, logger)
	authService := service.NewAuth(userRepo, verificationRepo, service.NewLogCodeSender(logger), tokenService, clock, logger)

	storageClient, err := storage.Connect(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}
	avatarService := service.NewAvatar(userRepo, storageClient, clock, logger)

	registry := metrics.NewRegistry()
	r := router.New(
		router.Services{
			Auth:   authService,
			Avatar: avatarService,
			Token:  tokenService,
			DB:     db,
		},
		httpctx.NewManager(),
		apperr.NewClassifier(cfg.Mode, logger),
		metrics.New(registry),
		registry,
		cfg.RateLimit,
		service.MaxAvatarBytes,
		logger,
	)

	httpSrv := httpServer.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))
	sl := server.NewSecurityLayer(cfg.HTTP)

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "mode", cfg.Mode)
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(httpSrv)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpSrv.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
