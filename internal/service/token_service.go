package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/model"
	"github.com/dtroode/socialhub/internal/token"
)

// TokenService provides high-level operations for issuing, refreshing,
// and revoking tokens. It composes the TokenManager and RefreshTokenStore.
type TokenService struct {
	manager model.TokenManager
	store   model.RefreshTokenStore
	clock   clockwork.Clock
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, store model.RefreshTokenStore, clock clockwork.Clock, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, clock: clock, logger: logger}
}

func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (accessToken string, refreshToken string, err error) {
	access, err := s.manager.GenerateAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue access: %w", err)
	}

	refresh, jti, err := s.manager.GenerateRefreshToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh: %w", err)
	}

	if err := s.persist(ctx, userID, refresh, jti, nil); err != nil {
		return "", "", fmt.Errorf("persist refresh: %w", err)
	}

	return access, refresh, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *TokenService) Refresh(ctx context.Context, presentedRefresh string) (newAccess string, newRefresh string, err error) {
	userID, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return "", "", apperr.Unauthorized("invalid refresh token").WithCause(err)
	}

	rt, err := s.store.GetByJTI(ctx, jti)
	if errors.Is(err, model.ErrNotFound) {
		return "", "", apperr.Unauthorized("refresh token is unknown")
	}
	if err != nil {
		return "", "", apperr.Internal("failed to load refresh token", err)
	}

	if err := validateRecord(rt, hashRefresh(presentedRefresh), s.clock); err != nil {
		s.logger.Warn("Token service: refresh rejected",
			"user_id", userID,
			"jti", jti,
			"error", err.Error())
		return "", "", apperr.Unauthorized("refresh token rejected").WithCause(err)
	}

	err = s.store.RevokeByJTI(ctx, jti)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("Token service: refresh token already rotated",
			"user_id", userID,
			"jti", jti)
		return "", "", apperr.Unauthorized("refresh token already rotated")
	}
	if err != nil {
		return "", "", apperr.Internal("failed to revoke old refresh token", err)
	}

	access, err := s.manager.GenerateAccessToken(userID)
	if err != nil {
		return "", "", apperr.Internal("failed to issue access token", err)
	}

	refresh, newJTI, err := s.manager.GenerateRefreshToken(userID)
	if err != nil {
		return "", "", apperr.Internal("failed to issue refresh token", err)
	}

	rotatedFrom := rt.JTI
	if err := s.persist(ctx, userID, refresh, newJTI, &rotatedFrom); err != nil {
		return "", "", apperr.Internal("failed to persist refresh token", err)
	}

	return access, refresh, nil
}

func (s *TokenService) RevokeByToken(ctx context.Context, presentedRefresh string) error {
	_, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return apperr.Unauthorized("invalid refresh token").WithCause(err)
	}
	err = s.store.RevokeByJTI(ctx, jti)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return apperr.Internal("failed to revoke refresh token", err)
	}
	return nil
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.RevokeAllByUser(ctx, userID)
}

// GetUserID resolves the user behind a bearer access token.
func (s *TokenService) GetUserID(_ context.Context, token string) (uuid.UUID, error) {
	return s.manager.ParseAccessToken(token)
}

func (s *TokenService) persist(ctx context.Context, userID uuid.UUID, refresh, jti string, rotatedFrom *string) error {
	now := s.clock.Now()
	return s.store.Create(ctx, model.RefreshToken{
		ID:             uuid.New(),
		JTI:            jti,
		UserID:         userID,
		TokenHash:      hashRefresh(refresh),
		IssuedAt:       now,
		ExpiresAt:      now.Add(token.RefreshTTL),
		RotatedFromJTI: rotatedFrom,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateRecord(rt model.RefreshToken, presentedHash []byte, clock clockwork.Clock) error {
	if rt.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if clock.Now().After(rt.ExpiresAt) {
		return model.ErrTokenExpired
	}
	if subtle.ConstantTimeCompare(rt.TokenHash, presentedHash) != 1 {
		return model.ErrTokenMismatch
	}
	return nil
}
