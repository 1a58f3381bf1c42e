package mocks

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/socialhub/internal/model"
)

// AuthService is a mock of the account operations used by HTTP handlers.
type AuthService struct {
	mock.Mock
}

func NewAuthService(t testingT) *AuthService {
	m := &AuthService{}
	register(t, &m.Mock)
	return m
}

func (m *AuthService) Register(ctx context.Context, params model.RegisterParams) (model.Session, error) {
	ret := m.Called(ctx, params)
	return ret.Get(0).(model.Session), ret.Error(1)
}

func (m *AuthService) Login(ctx context.Context, email, password string) (model.Session, error) {
	ret := m.Called(ctx, email, password)
	return ret.Get(0).(model.Session), ret.Error(1)
}

func (m *AuthService) Me(ctx context.Context, userID uuid.UUID) (model.User, error) {
	ret := m.Called(ctx, userID)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, update model.ProfileUpdate) (model.User, error) {
	ret := m.Called(ctx, userID, update)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *AuthService) RequestVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *AuthService) Verify(ctx context.Context, email, code string) (model.Session, error) {
	ret := m.Called(ctx, email, code)
	return ret.Get(0).(model.Session), ret.Error(1)
}

// AvatarService is a mock of the avatar operations used by HTTP handlers.
type AvatarService struct {
	mock.Mock
}

func NewAvatarService(t testingT) *AvatarService {
	m := &AvatarService{}
	register(t, &m.Mock)
	return m
}

func (m *AvatarService) Upload(ctx context.Context, userID uuid.UUID, contentType string, size int64, r io.Reader) (model.User, error) {
	ret := m.Called(ctx, userID, contentType, size, r)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *AvatarService) Download(ctx context.Context, userID uuid.UUID) (io.ReadCloser, string, error) {
	ret := m.Called(ctx, userID)
	rc, _ := ret.Get(0).(io.ReadCloser)
	return rc, ret.String(1), ret.Error(2)
}
