// Package gateway is the HTTP client of the account API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
)

// DefaultTimeout bounds every call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

var (
	// ErrTransport reports that no response was received.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse reports a 2xx response whose body is unusable.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error is a non-2xx answer from the server.
type Error struct {
	StatusCode int
	// Message is the server's error.message, empty when the body did not carry one.
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// MessageOf returns the server-provided message carried by err, if any.
func MessageOf(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return ""
}

// Gateway performs the account API calls. It never retries.
type Gateway struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

// New creates a Gateway for baseURL. A zero timeout selects DefaultTimeout.
func New(baseURL string, timeout time.Duration, logger *logger.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithClient(baseURL, &http.Client{Timeout: timeout}, logger)
}

func NewWithClient(baseURL string, client *http.Client, logger *logger.Logger) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

func (g *Gateway) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	if err := g.do(ctx, http.MethodPost, "/api/auth/login", "", credentials{Email: email, Password: password}, &s); err != nil {
		return Session{}, err
	}
	return checked(s)
}

func (g *Gateway) Register(ctx context.Context, payload RegisterPayload) (Session, error) {
	var s Session
	if err := g.do(ctx, http.MethodPost, "/api/auth/register", "", payload, &s); err != nil {
		return Session{}, err
	}
	return checked(s)
}

// Me returns the user the bearer token belongs to.
func (g *Gateway) Me(ctx context.Context, token string) (User, error) {
	var env userEnvelope
	if err := g.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &env); err != nil {
		return User{}, err
	}
	if env.User.ID == uuid.Nil {
		return User{}, fmt.Errorf("%w: user is missing", ErrMalformedResponse)
	}
	return env.User, nil
}

// RequestVerification asks the server to send a one-time code to email.
func (g *Gateway) RequestVerification(ctx context.Context, email string) error {
	return g.do(ctx, http.MethodPost, "/api/auth/verification", "", verificationRequest{Email: email}, nil)
}

// Verify exchanges a one-time code for a session.
func (g *Gateway) Verify(ctx context.Context, email, code string) (Session, error) {
	var s Session
	if err := g.do(ctx, http.MethodPost, "/api/auth/verify", "", verifyRequest{Email: email, Code: code}, &s); err != nil {
		return Session{}, err
	}
	return checked(s)
}

// UpdateProfile sends the profile fields of patch and returns the stored user.
func (g *Gateway) UpdateProfile(ctx context.Context, token string, patch UserPatch) (User, error) {
	var env userEnvelope
	if err := g.do(ctx, http.MethodPatch, "/api/users/me", token, patch, &env); err != nil {
		return User{}, err
	}
	return env.User, nil
}

func (g *Gateway) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	g.logger.Debug("Gateway: sending request",
		"method", method,
		"path", path)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &Error{StatusCode: resp.StatusCode}
		var errBody apperr.Body
		if json.Unmarshal(raw, &errBody) == nil {
			gwErr.Message = errBody.Error.Message
		}
		g.logger.Debug("Gateway: request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"message", gwErr.Message)
		return gwErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func checked(s Session) (Session, error) {
	if s.Token == "" {
		return Session{}, fmt.Errorf("%w: token is missing", ErrMalformedResponse)
	}
	if s.User.ID == uuid.Nil {
		return Session{}, fmt.Errorf("%w: user is missing", ErrMalformedResponse)
	}
	return s, nil
}
