// Package router wires the HTTP handlers and middleware into an echo instance.
package router

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtroode/socialhub/internal/api/http/handler"
	"github.com/dtroode/socialhub/internal/api/http/middleware"
	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/config"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/metrics"
	"github.com/dtroode/socialhub/internal/model"
)

// TokenService covers both bearer validation and the refresh endpoints.
type TokenService interface {
	GetUserID(ctx context.Context, token string) (uuid.UUID, error)
	Refresh(ctx context.Context, refreshToken string) (string, string, error)
	RevokeByToken(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Services groups the application services the routes call into.
type Services struct {
	Auth   handler.AuthService
	Avatar handler.AvatarService
	Token  TokenService
	DB     handler.Pinger
}

// Router represents the HTTP router for the account API.
type Router struct {
	services       Services
	contextManager model.ContextManager
	classifier     *apperr.Classifier
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	rateLimit      config.RateLimit
	maxAvatarBytes int64
	logger         *logger.Logger
}

// New creates a new Router instance.
func New(
	services Services,
	contextManager model.ContextManager,
	classifier *apperr.Classifier,
	m *metrics.Metrics,
	registry *prometheus.Registry,
	rateLimit config.RateLimit,
	maxAvatarBytes int64,
	logger *logger.Logger,
) *Router {
	return &Router{
		services:       services,
		contextManager: contextManager,
		classifier:     classifier,
		metrics:        m,
		registry:       registry,
		rateLimit:      rateLimit,
		maxAvatarBytes: maxAvatarBytes,
		logger:         logger,
	}
}

// Register builds the echo instance with every route and middleware attached.
func (r *Router) Register() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.NewErrorHandler(r.classifier, r.metrics, r.logger)

	logging := middleware.NewLogging(r.logger)
	e.Use(r.metrics.Middleware(), logging.Handle)

	authenticate := middleware.NewAuthenticate(r.services.Token, r.contextManager, r.logger)

	r.registerAuthRoutes(e, authenticate)
	r.registerUserRoutes(e, authenticate)

	health := handler.NewHealth(r.services.DB, r.logger)
	e.GET("/healthz", health.Check)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(r.registry)))

	return e
}

func (r *Router) registerAuthRoutes(e *echo.Echo, authenticate *middleware.Authenticate) {
	h := handler.NewAuth(r.services.Auth, r.services.Token, r.contextManager, r.metrics, r.logger)

	limited := e.Group("/api/auth", middleware.NewRateLimiter(r.rateLimit.PerSecond, r.rateLimit.Burst))
	limited.POST("/register", h.Register)
	limited.POST("/login", h.Login)
	limited.POST("/verification", h.RequestVerification)
	limited.POST("/verify", h.Verify)
	limited.POST("/refresh", h.Refresh)
	limited.POST("/logout", h.Logout)

	e.GET("/api/auth/me", h.Me, authenticate.Handle)
	e.POST("/api/auth/logout-all", h.LogoutAll, authenticate.Handle)
}

func (r *Router) registerUserRoutes(e *echo.Echo, authenticate *middleware.Authenticate) {
	h := handler.NewUsers(r.services.Auth, r.services.Avatar, r.contextManager, r.maxAvatarBytes, r.logger)

	users := e.Group("/api/users")
	users.PATCH("/me", h.UpdateProfile, authenticate.Handle)
	users.PUT("/me/avatar", h.UploadAvatar, authenticate.Handle)
	users.GET("/:id/avatar", h.GetAvatar)
}
