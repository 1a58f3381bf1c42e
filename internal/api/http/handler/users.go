package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/model"
)

// AvatarService defines avatar storage operations.
type AvatarService interface {
	Upload(ctx context.Context, userID uuid.UUID, contentType string, size int64, r io.Reader) (model.User, error)
	Download(ctx context.Context, userID uuid.UUID) (io.ReadCloser, string, error)
}

// Users handles the /api/users endpoints.
type Users struct {
	authService    AuthService
	avatarService  AvatarService
	contextManager model.ContextManager
	maxAvatarBytes int64
	logger         *logger.Logger
}

func NewUsers(
	authService AuthService,
	avatarService AvatarService,
	contextManager model.ContextManager,
	maxAvatarBytes int64,
	logger *logger.Logger,
) *Users {
	return &Users{
		authService:    authService,
		avatarService:  avatarService,
		contextManager: contextManager,
		maxAvatarBytes: maxAvatarBytes,
		logger:         logger,
	}
}

// UpdateProfile applies a partial profile update to the caller's account.
func (h *Users) UpdateProfile(c echo.Context) error {
	userID, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdateProfile(c.Request().Context(), userID, model.ProfileUpdate{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UserEnvelope{User: toUserResponse(user)})
}

// UploadAvatar stores the raw request body as the caller's avatar.
// The body's Content-Type and Content-Length are required.
func (h *Users) UploadAvatar(c echo.Context) error {
	userID, err := h.currentUser(c)
	if err != nil {
		return err
	}

	req := c.Request()
	if req.ContentLength <= 0 {
		return apperr.Validation("Content-Length is required")
	}
	if req.ContentLength > h.maxAvatarBytes {
		return apperr.Validation("avatar is too large")
	}

	body := http.MaxBytesReader(c.Response(), req.Body, h.maxAvatarBytes)
	defer body.Close()

	user, err := h.avatarService.Upload(req.Context(), userID, req.Header.Get(echo.HeaderContentType), req.ContentLength, body)
	if err != nil {
		return err
	}

	h.logger.Debug("Users handler: avatar uploaded",
		"user_id", userID)

	return c.JSON(http.StatusOK, UserEnvelope{User: toUserResponse(user)})
}

func (h *Users) GetAvatar(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("user id is not a uuid")
	}

	rc, contentType, err := h.avatarService.Download(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *Users) currentUser(c echo.Context) (uuid.UUID, error) {
	userID, ok := h.contextManager.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, apperr.Unauthorized("no authenticated user in context")
	}
	return userID, nil
}
