package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/model"
)

// AuthService defines account operations exposed over HTTP.
type AuthService interface {
	Register(ctx context.Context, params model.RegisterParams) (model.Session, error)
	Login(ctx context.Context, email, password string) (model.Session, error)
	Me(ctx context.Context, userID uuid.UUID) (model.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update model.ProfileUpdate) (model.User, error)
	RequestVerification(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) (model.Session, error)
}

// TokenService defines token refresh and revoke operations.
type TokenService interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, newRefreshToken string, err error)
	RevokeByToken(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// AuthRecorder counts authentication attempts.
type AuthRecorder interface {
	RecordAuth(operation string, err error)
}

// Auth handles the /api/auth endpoints.
type Auth struct {
	authService    AuthService
	tokenService   TokenService
	contextManager model.ContextManager
	recorder       AuthRecorder
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(
	authService AuthService,
	tokenService TokenService,
	contextManager model.ContextManager,
	recorder AuthRecorder,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		authService:    authService,
		tokenService:   tokenService,
		contextManager: contextManager,
		recorder:       recorder,
		logger:         logger,
	}
}

// Register creates an account and opens a session for it.
func (h *Auth) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	h.logger.Debug("Auth handler: processing registration request",
		"email", req.Email)

	session, err := h.authService.Register(c.Request().Context(), model.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	h.recorder.RecordAuth("register", err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toSessionResponse(session))
}

func (h *Auth) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	h.logger.Debug("Auth handler: processing login request",
		"email", req.Email)

	session, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	h.recorder.RecordAuth("login", err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toSessionResponse(session))
}

// Me returns the account behind the bearer token.
func (h *Auth) Me(c echo.Context) error {
	userID, err := h.currentUser(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Me(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UserEnvelope{User: toUserResponse(user)})
}

func (h *Auth) RequestVerification(c echo.Context) error {
	var req verificationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authService.RequestVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, successResponse{Success: true})
}

// Verify exchanges a one-time code for a session.
func (h *Auth) Verify(c echo.Context) error {
	var req verifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.authService.Verify(c.Request().Context(), req.Email, req.Code)
	h.recorder.RecordAuth("verify", err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *Auth) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return apperr.Validation("refresh_token is required")
	}

	access, refresh, err := h.tokenService.Refresh(c.Request().Context(), req.RefreshToken)
	h.recorder.RecordAuth("refresh", err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TokenPair{Token: access, RefreshToken: refresh})
}

// Logout revokes the presented refresh token.
func (h *Auth) Logout(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return apperr.Validation("refresh_token is required")
	}

	if err := h.tokenService.RevokeByToken(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the authenticated user.
func (h *Auth) LogoutAll(c echo.Context) error {
	userID, err := h.currentUser(c)
	if err != nil {
		return err
	}

	if err := h.tokenService.RevokeAllForUser(c.Request().Context(), userID); err != nil {
		return apperr.Internal("failed to revoke sessions", err)
	}

	h.logger.Info("Auth handler: all sessions revoked",
		"user_id", userID)

	return c.NoContent(http.StatusNoContent)
}

func (h *Auth) currentUser(c echo.Context) (uuid.UUID, error) {
	userID, ok := h.contextManager.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, apperr.Unauthorized("no authenticated user in context")
	}
	return userID, nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("malformed request body").WithCause(err)
	}
	return nil
}
