package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/socialhub/internal/client/gateway"
)

// SessionGateway is a mock of session.Gateway.
type SessionGateway struct {
	mock.Mock
}

func NewSessionGateway(t testingT) *SessionGateway {
	m := &SessionGateway{}
	register(t, &m.Mock)
	return m
}

func (m *SessionGateway) Login(ctx context.Context, email, password string) (gateway.Session, error) {
	ret := m.Called(ctx, email, password)
	return ret.Get(0).(gateway.Session), ret.Error(1)
}

func (m *SessionGateway) Register(ctx context.Context, payload gateway.RegisterPayload) (gateway.Session, error) {
	ret := m.Called(ctx, payload)
	return ret.Get(0).(gateway.Session), ret.Error(1)
}

func (m *SessionGateway) Me(ctx context.Context, token string) (gateway.User, error) {
	ret := m.Called(ctx, token)
	return ret.Get(0).(gateway.User), ret.Error(1)
}

func (m *SessionGateway) Verify(ctx context.Context, email, code string) (gateway.Session, error) {
	ret := m.Called(ctx, email, code)
	return ret.Get(0).(gateway.Session), ret.Error(1)
}
