package mocks

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/socialhub/internal/model"
)

// UserStore is a mock of model.UserStore.
type UserStore struct {
	mock.Mock
}

func NewUserStore(t testingT) *UserStore {
	m := &UserStore{}
	register(t, &m.Mock)
	return m
}

func (m *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	ret := m.Called(ctx, email)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) GetByUsername(ctx context.Context, username string) (model.User, error) {
	ret := m.Called(ctx, username)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	ret := m.Called(ctx, id)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	ret := m.Called(ctx, user)
	if fn, ok := ret.Get(0).(func(context.Context, model.User) model.User); ok {
		return fn(ctx, user), ret.Error(1)
	}
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) Update(ctx context.Context, user model.User) (model.User, error) {
	ret := m.Called(ctx, user)
	if fn, ok := ret.Get(0).(func(context.Context, model.User) model.User); ok {
		return fn(ctx, user), ret.Error(1)
	}
	return ret.Get(0).(model.User), ret.Error(1)
}

func (m *UserStore) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

// RefreshTokenStore is a mock of model.RefreshTokenStore.
type RefreshTokenStore struct {
	mock.Mock
}

func NewRefreshTokenStore(t testingT) *RefreshTokenStore {
	m := &RefreshTokenStore{}
	register(t, &m.Mock)
	return m
}

func (m *RefreshTokenStore) Create(ctx context.Context, token model.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *RefreshTokenStore) GetByJTI(ctx context.Context, jti string) (model.RefreshToken, error) {
	ret := m.Called(ctx, jti)
	return ret.Get(0).(model.RefreshToken), ret.Error(1)
}

func (m *RefreshTokenStore) RevokeByJTI(ctx context.Context, jti string) error {
	return m.Called(ctx, jti).Error(0)
}

func (m *RefreshTokenStore) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// VerificationStore is a mock of model.VerificationStore.
type VerificationStore struct {
	mock.Mock
}

func NewVerificationStore(t testingT) *VerificationStore {
	m := &VerificationStore{}
	register(t, &m.Mock)
	return m
}

func (m *VerificationStore) Create(ctx context.Context, code model.VerificationCode) error {
	return m.Called(ctx, code).Error(0)
}

func (m *VerificationStore) GetLatest(ctx context.Context, email string) (model.VerificationCode, error) {
	ret := m.Called(ctx, email)
	return ret.Get(0).(model.VerificationCode), ret.Error(1)
}

func (m *VerificationStore) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *VerificationStore) Consume(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// CodeSender is a mock of model.CodeSender.
type CodeSender struct {
	mock.Mock
}

func NewCodeSender(t testingT) *CodeSender {
	m := &CodeSender{}
	register(t, &m.Mock)
	return m
}

func (m *CodeSender) SendCode(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

// Storage is a mock of model.Storage.
type Storage struct {
	mock.Mock
}

func NewStorage(t testingT) *Storage {
	m := &Storage{}
	register(t, &m.Mock)
	return m
}

func (m *Storage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return m.Called(ctx, key, reader, size, contentType).Error(0)
}

func (m *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	ret := m.Called(ctx, key)
	rc, _ := ret.Get(0).(io.ReadCloser)
	return rc, ret.Error(1)
}

func (m *Storage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
