// Package session owns the client's authentication state.
//
// A Store starts Unresolved. CheckAuth resolves it exactly once, after which
// it is Authenticated or Anonymous and only Login, Register, Verify and
// Logout move it between the two.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dtroode/socialhub/internal/client/gateway"
	"github.com/dtroode/socialhub/internal/client/tokenstore"
	"github.com/dtroode/socialhub/internal/logger"
)

// Fallback messages stored when the server gives no message of its own.
const (
	LoginFailed        = "Login failed"
	RegistrationFailed = "Registration failed"
	VerificationFailed = "Verification failed"
)

// Gateway is the transport the Store authenticates through.
type Gateway interface {
	Login(ctx context.Context, email, password string) (gateway.Session, error)
	Register(ctx context.Context, payload gateway.RegisterPayload) (gateway.Session, error)
	Me(ctx context.Context, token string) (gateway.User, error)
	Verify(ctx context.Context, email, code string) (gateway.Session, error)
}

// Status is the derived top-level state of a Store.
type Status int

const (
	Unresolved Status = iota
	Authenticated
	Anonymous
)

func (s Status) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// Snapshot is a consistent copy of the Store's observable state.
type Snapshot struct {
	User    *gateway.User
	Loading bool
	Error   string
}

// failurePolicy says what a failed operation does to the Store.
type failurePolicy struct {
	// surface stores the error message and returns the error to the caller.
	// Otherwise the failure resets the session to anonymous and is only logged.
	surface  bool
	fallback string
}

var (
	checkAuthPolicy = failurePolicy{}
	loginPolicy     = failurePolicy{surface: true, fallback: LoginFailed}
	registerPolicy  = failurePolicy{surface: true, fallback: RegistrationFailed}
	verifyPolicy    = failurePolicy{surface: true, fallback: VerificationFailed}
)

// result is the outcome of one remote session call.
type result struct {
	token string
	user  gateway.User
	err   error
	// fresh marks a newly issued token that must be persisted.
	fresh bool
}

type Store struct {
	gateway Gateway
	tokens  tokenstore.TokenStore
	logger  *logger.Logger

	mu      sync.RWMutex
	token   string
	user    *gateway.User
	loading bool
	errMsg  string

	once   sync.Once
	ready  chan struct{}
	flight singleflight.Group
}

func New(gw Gateway, tokens tokenstore.TokenStore, logger *logger.Logger) *Store {
	return &Store{
		gateway: gw,
		tokens:  tokens,
		logger:  logger,
		loading: true,
		ready:   make(chan struct{}),
	}
}

// CheckAuth resolves the persisted token into a user. Only the first call does
// any work; later calls return immediately. Failures are never returned.
func (s *Store) CheckAuth(ctx context.Context) {
	s.once.Do(func() {
		defer s.resolve()

		token, ok := s.tokens.Token()
		if !ok {
			s.logger.Debug("Session: no persisted token")
			return
		}

		user, err := s.gateway.Me(ctx, token)
		_ = s.apply("check auth", result{token: token, user: user, err: err}, checkAuthPolicy)
	})
}

// Ready is closed once the first CheckAuth has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the session is resolved or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login authenticates with credentials. Concurrent calls with the same
// credentials share one request and one outcome.
func (s *Store) Login(ctx context.Context, email, password string) (gateway.User, error) {
	key := flightKey("login", email, password)
	return s.establish(ctx, key, loginPolicy, func(ctx context.Context) (gateway.Session, error) {
		return s.gateway.Login(ctx, email, password)
	})
}

// Register creates an account and signs into it.
func (s *Store) Register(ctx context.Context, payload gateway.RegisterPayload) (gateway.User, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return gateway.User{}, err
	}
	key := flightKey("register", string(raw))
	return s.establish(ctx, key, registerPolicy, func(ctx context.Context) (gateway.Session, error) {
		return s.gateway.Register(ctx, payload)
	})
}

// Verify signs in with a one-time verification code.
func (s *Store) Verify(ctx context.Context, email, code string) (gateway.User, error) {
	key := flightKey("verify", email, code)
	return s.establish(ctx, key, verifyPolicy, func(ctx context.Context) (gateway.Session, error) {
		return s.gateway.Verify(ctx, email, code)
	})
}

// Logout forgets the token and the user. It never fails.
func (s *Store) Logout() {
	if err := s.tokens.Clear(); err != nil {
		s.logger.Warn("Session: failed to clear persisted token",
			"error", err.Error())
	}

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	s.logger.Debug("Session: logged out")
}

// UpdateUser shallow-merges patch into the current user. It does nothing
// while no user is signed in.
func (s *Store) UpdateUser(patch gateway.UserPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return
	}
	merged := s.user.Merge(patch)
	s.user = &merged
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Loading: s.loading, Error: s.errMsg}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.loading:
		return Unresolved
	case s.user != nil:
		return Authenticated
	default:
		return Anonymous
	}
}

// Token returns the bearer token of the current session.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// establish runs call once per key among concurrent callers. The shared call
// outlives any single caller's ctx and is bounded by the gateway timeout; a
// caller whose ctx ends first stops waiting and gets ctx.Err().
func (s *Store) establish(ctx context.Context, key string, policy failurePolicy,
	call func(ctx context.Context) (gateway.Session, error),
) (gateway.User, error) {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()

	op, _, _ := strings.Cut(key, ":")
	callCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		sess, err := call(callCtx)
		r := result{token: sess.Token, user: sess.User, err: err, fresh: true}
		return sess.User, s.apply(op, r, policy)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Session: shared in-flight request",
				"op", op)
		}
		if res.Err != nil {
			return gateway.User{}, res.Err
		}
		return res.Val.(gateway.User), nil
	case <-ctx.Done():
		s.logger.Debug("Session: stopped waiting for request",
			"op", op,
			"error", ctx.Err().Error())
		return gateway.User{}, ctx.Err()
	}
}

// flightKey identifies a request by its operation and every input that can
// change its outcome. Inputs are hashed so secrets never sit in the key.
func flightKey(op string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil))
}

// apply commits r to the Store according to policy and returns the error the
// caller should see.
func (s *Store) apply(op string, r result, policy failurePolicy) error {
	if r.err == nil {
		if r.fresh {
			if err := s.tokens.SetToken(r.token); err != nil {
				s.logger.Warn("Session: failed to persist token",
					"op", op,
					"error", err.Error())
			}
		}
		user := r.user

		s.mu.Lock()
		s.token = r.token
		s.user = &user
		s.mu.Unlock()

		s.logger.Debug("Session: authenticated",
			"op", op,
			"user_id", user.ID)
		return nil
	}

	if !policy.surface {
		s.logger.Info("Session: discarding persisted token",
			"op", op,
			"error", r.err.Error())
		if err := s.tokens.Clear(); err != nil {
			s.logger.Warn("Session: failed to clear persisted token",
				"error", err.Error())
		}

		s.mu.Lock()
		s.token = ""
		s.user = nil
		s.mu.Unlock()
		return nil
	}

	msg := gateway.MessageOf(r.err)
	if msg == "" {
		msg = policy.fallback
	}

	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()

	s.logger.Debug("Session: operation failed",
		"op", op,
		"message", msg,
		"error", r.err.Error())
	return r.err
}

func (s *Store) resolve() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	close(s.ready)
}
