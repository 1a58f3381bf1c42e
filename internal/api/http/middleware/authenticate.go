package middleware

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/model"
)

const bearerPrefix = "Bearer "

// TokenService resolves user ID from bearer tokens.
type TokenService interface {
	GetUserID(ctx context.Context, token string) (uuid.UUID, error)
}

// Authenticate validates bearer tokens and injects user ID into context.
type Authenticate struct {
	tokenService   TokenService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokenService TokenService, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, contextManager: contextManager, logger: logger}
}

// Handle rejects requests without a valid bearer token and stores the
// authenticated user ID in the request context otherwise.
func (m *Authenticate) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		userID, err := m.authenticateUser(req.Context(), req.Header.Get(echo.HeaderAuthorization))
		if err != nil {
			m.logger.Debug("Authenticate: request rejected",
				"path", req.URL.Path,
				"error", err.Error())
			return err
		}

		c.SetRequest(req.WithContext(m.contextManager.SetUserIDToContext(req.Context(), userID)))
		return next(c)
	}
}

func (m *Authenticate) authenticateUser(ctx context.Context, header string) (uuid.UUID, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return uuid.Nil, apperr.Unauthorized("missing authorization token")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if tokenString == "" {
		return uuid.Nil, apperr.Unauthorized("missing authorization token")
	}

	userID, err := m.tokenService.GetUserID(ctx, tokenString)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("invalid authorization token").WithCause(err)
	}
	if userID == uuid.Nil {
		return uuid.Nil, apperr.Unauthorized("invalid authorization token")
	}

	return userID, nil
}
