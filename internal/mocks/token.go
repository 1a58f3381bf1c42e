package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// TokenManager is a mock of model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func NewTokenManager(t testingT) *TokenManager {
	m := &TokenManager{}
	register(t, &m.Mock)
	return m
}

func (m *TokenManager) GenerateAccessToken(userID uuid.UUID) (string, error) {
	ret := m.Called(userID)
	return ret.String(0), ret.Error(1)
}

func (m *TokenManager) GenerateRefreshToken(userID uuid.UUID) (string, string, error) {
	ret := m.Called(userID)
	return ret.String(0), ret.String(1), ret.Error(2)
}

func (m *TokenManager) ParseAccessToken(token string) (uuid.UUID, error) {
	ret := m.Called(token)
	return ret.Get(0).(uuid.UUID), ret.Error(1)
}

func (m *TokenManager) ParseRefreshToken(token string) (uuid.UUID, string, error) {
	ret := m.Called(token)
	return ret.Get(0).(uuid.UUID), ret.String(1), ret.Error(2)
}

// TokenService is a mock of the token operations handlers and middleware use.
type TokenService struct {
	mock.Mock
}

func NewTokenService(t testingT) *TokenService {
	m := &TokenService{}
	register(t, &m.Mock)
	return m
}

func (m *TokenService) GetUserID(ctx context.Context, token string) (uuid.UUID, error) {
	ret := m.Called(ctx, token)
	return ret.Get(0).(uuid.UUID), ret.Error(1)
}

func (m *TokenService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	ret := m.Called(ctx, refreshToken)
	return ret.String(0), ret.String(1), ret.Error(2)
}

func (m *TokenService) RevokeByToken(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}
