package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/socialhub/internal/client/gateway"
	"github.com/dtroode/socialhub/internal/client/tokenstore"
	"github.com/dtroode/socialhub/internal/mocks"
	"github.com/dtroode/socialhub/internal/testutil"
)

var ada = gateway.User{ID: uuid.MustParse("0b5c8a3e-2f55-4e0c-8d1a-6a1b7f2e9c44"), Username: "ada", DisplayName: "Y"}

func newStore(t *testing.T, token string) (*Store, *mocks.SessionGateway, *tokenstore.Memory) {
	t.Helper()
	gw := mocks.NewSessionGateway(t)
	tokens := tokenstore.NewMemory(token)
	return New(gw, tokens, testutil.MakeNoopLogger()), gw, tokens
}

func resolvedStore(t *testing.T) (*Store, *mocks.SessionGateway, *tokenstore.Memory) {
	t.Helper()
	s, gw, tokens := newStore(t, "")
	s.CheckAuth(context.Background())
	return s, gw, tokens
}

func TestStore_StartsUnresolved(t *testing.T) {
	s, _, _ := newStore(t, "")

	assert.Equal(t, Unresolved, s.Status())
	assert.True(t, s.Snapshot().Loading)
	select {
	case <-s.Ready():
		t.Fatal("ready before CheckAuth")
	default:
	}
}

func TestCheckAuth_NoToken(t *testing.T) {
	s, _, _ := newStore(t, "")

	s.CheckAuth(context.Background())

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Error)
	assert.Equal(t, Anonymous, s.Status())
	require.NoError(t, s.Wait(context.Background()))
}

func TestCheckAuth_ValidToken(t *testing.T) {
	s, gw, _ := newStore(t, "tok")
	gw.On("Me", mock.Anything, "tok").Return(ada, nil).Once()

	s.CheckAuth(context.Background())

	snap := s.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, ada, *snap.User)
	assert.False(t, snap.Loading)
	assert.Equal(t, Authenticated, s.Status())
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
}

func TestCheckAuth_FailureIsSilent(t *testing.T) {
	failures := []struct {
		name string
		err  error
	}{
		{name: "unauthorized", err: &gateway.Error{StatusCode: 401, Message: "Unauthorized"}},
		{name: "transport", err: gateway.ErrTransport},
		{name: "malformed", err: gateway.ErrMalformedResponse},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			s, gw, tokens := newStore(t, "stale")
			gw.On("Me", mock.Anything, "stale").Return(gateway.User{}, tt.err).Once()

			s.CheckAuth(context.Background())

			snap := s.Snapshot()
			assert.Nil(t, snap.User)
			assert.False(t, snap.Loading)
			assert.Empty(t, snap.Error)
			_, ok := tokens.Token()
			assert.False(t, ok)
			_, ok = s.Token()
			assert.False(t, ok)
		})
	}
}

func TestCheckAuth_RunsOnce(t *testing.T) {
	s, gw, _ := newStore(t, "tok")
	gw.On("Me", mock.Anything, "tok").Return(ada, nil).Once()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.CheckAuth(context.Background())
		}()
	}
	wg.Wait()

	s.Logout()
	s.CheckAuth(context.Background())
	assert.Equal(t, Anonymous, s.Status())
}

func TestWait_RespectsContext(t *testing.T) {
	s, _, _ := newStore(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.Canceled)

	go s.CheckAuth(context.Background())
	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.False(t, s.Snapshot().Loading)
}

func TestLogin_Success(t *testing.T) {
	s, gw, tokens := resolvedStore(t)
	gw.On("Login", mock.Anything, "a@b.com", "pw").
		Return(gateway.Session{Token: "tok", User: ada}, nil).Once()

	user, err := s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, ada, user)
	snap := s.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, ada, *snap.User)
	persisted, ok := tokens.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", persisted)
	assert.Equal(t, Authenticated, s.Status())
}

func TestLogin_FailureSurfaces(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "server message", err: &gateway.Error{StatusCode: 401, Message: "Invalid credentials"}, message: "Invalid credentials"},
		{name: "no server message", err: &gateway.Error{StatusCode: 500}, message: LoginFailed},
		{name: "transport", err: gateway.ErrTransport, message: LoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, gw, tokens := newStore(t, "old")
			gw.On("Me", mock.Anything, "old").Return(ada, nil).Once()
			s.CheckAuth(context.Background())

			gw.On("Login", mock.Anything, "a@b.com", "pw").Return(gateway.Session{}, tt.err).Once()

			_, err := s.Login(context.Background(), "a@b.com", "pw")
			assert.ErrorIs(t, err, tt.err)

			snap := s.Snapshot()
			assert.Equal(t, tt.message, snap.Error)
			require.NotNil(t, snap.User)
			assert.Equal(t, ada, *snap.User)
			persisted, _ := tokens.Token()
			assert.Equal(t, "old", persisted)
		})
	}
}

func TestLogin_ClearsPreviousError(t *testing.T) {
	s, gw, _ := resolvedStore(t)
	gw.On("Login", mock.Anything, "a@b.com", "bad").
		Return(gateway.Session{}, &gateway.Error{StatusCode: 401, Message: "Invalid credentials"}).Once()
	gw.On("Login", mock.Anything, "a@b.com", "pw").
		Return(gateway.Session{Token: "tok", User: ada}, nil).Once()

	_, err := s.Login(context.Background(), "a@b.com", "bad")
	require.Error(t, err)
	require.Equal(t, "Invalid credentials", s.Snapshot().Error)

	_, err = s.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().Error)
}

func TestLogin_ConcurrentCallsShareOneRequest(t *testing.T) {
	s, gw, _ := resolvedStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("Login", mock.Anything, "a@b.com", "pw").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(gateway.Session{Token: "tok", User: ada}, nil).Once()

	const callers = 4
	users := make([]gateway.User, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		users[0], errs[0] = s.Login(context.Background(), "a@b.com", "pw")
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users[i], errs[i] = s.Login(context.Background(), "a@b.com", "pw")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ada, users[i])
	}
}

func TestLogin_DifferentPasswordRunsItsOwnRequest(t *testing.T) {
	s, gw, _ := resolvedStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("Login", mock.Anything, "a@b.com", "right").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(gateway.Session{Token: "tok", User: ada}, nil).Once()
	gw.On("Login", mock.Anything, "a@b.com", "wrong").
		Return(gateway.Session{}, &gateway.Error{StatusCode: 401, Message: "Invalid credentials"}).Once()

	var (
		user gateway.User
		err  error
		wg   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		user, err = s.Login(context.Background(), "a@b.com", "right")
	}()
	<-started

	_, wrongErr := s.Login(context.Background(), "a@b.com", "wrong")
	var gwErr *gateway.Error
	require.ErrorAs(t, wrongErr, &gwErr)
	assert.Equal(t, 401, gwErr.StatusCode)
	assert.Equal(t, "Invalid credentials", s.Snapshot().Error)

	close(release)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, ada, user)
}

func TestVerify_DifferentCodeRunsItsOwnRequest(t *testing.T) {
	s, gw, _ := resolvedStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("Verify", mock.Anything, "a@b.com", "123456").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(gateway.Session{Token: "tok", User: ada}, nil).Once()
	gw.On("Verify", mock.Anything, "a@b.com", "000000").
		Return(gateway.Session{}, &gateway.Error{StatusCode: 400, Message: "invalid code"}).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Verify(context.Background(), "a@b.com", "123456")
	}()
	<-started

	_, err := s.Verify(context.Background(), "a@b.com", "000000")
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "invalid code", gwErr.Message)

	close(release)
	wg.Wait()
	assert.Equal(t, Authenticated, s.Status())
}

func TestLogin_CallerContextOnlyEndsItsOwnWait(t *testing.T) {
	s, gw, _ := resolvedStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("Login", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "a@b.com", "pw").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(gateway.Session{Token: "tok", User: ada}, nil).Once()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Login(firstCtx, "a@b.com", "pw")
		firstErr <- err
	}()
	<-started

	var (
		user gateway.User
		err  error
		wg   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		user, err = s.Login(context.Background(), "a@b.com", "pw")
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, ada, user)
	assert.Equal(t, Authenticated, s.Status())
}

func TestLogin_JoinedCallerCanStopWaiting(t *testing.T) {
	s, gw, _ := resolvedStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("Login", mock.Anything, "a@b.com", "pw").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(gateway.Session{Token: "tok", User: ada}, nil).Once()

	var (
		user gateway.User
		err  error
		wg   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		user, err = s.Login(context.Background(), "a@b.com", "pw")
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, joinedErr := s.Login(ctx, "a@b.com", "pw")
	assert.ErrorIs(t, joinedErr, context.DeadlineExceeded)

	close(release)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, ada, user)
}

func TestFlightKey(t *testing.T) {
	assert.Equal(t, flightKey("login", "a@b.com", "pw"), flightKey("login", "a@b.com", "pw"))
	assert.NotEqual(t, flightKey("login", "a@b.com", "pw"), flightKey("login", "a@b.com", "pw2"))
	assert.NotEqual(t, flightKey("login", "ab", "c"), flightKey("login", "a", "bc"))
	assert.NotContains(t, flightKey("login", "a@b.com", "secret"), "secret")
}

func TestRegister(t *testing.T) {
	payload := gateway.RegisterPayload{Email: "a@b.com", Password: "password1", Username: "ada"}

	t.Run("success", func(t *testing.T) {
		s, gw, tokens := resolvedStore(t)
		gw.On("Register", mock.Anything, payload).Return(gateway.Session{Token: "tok", User: ada}, nil).Once()

		user, err := s.Register(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, ada, user)
		persisted, _ := tokens.Token()
		assert.Equal(t, "tok", persisted)
	})

	t.Run("fallback message", func(t *testing.T) {
		s, gw, _ := resolvedStore(t)
		gw.On("Register", mock.Anything, payload).Return(gateway.Session{}, gateway.ErrTransport).Once()

		_, err := s.Register(context.Background(), payload)
		assert.ErrorIs(t, err, gateway.ErrTransport)
		assert.Equal(t, RegistrationFailed, s.Snapshot().Error)
		assert.Equal(t, Anonymous, s.Status())
	})

	t.Run("server message", func(t *testing.T) {
		s, gw, _ := resolvedStore(t)
		gw.On("Register", mock.Anything, payload).
			Return(gateway.Session{}, &gateway.Error{StatusCode: 400, Message: "email is invalid"}).Once()

		_, err := s.Register(context.Background(), payload)
		require.Error(t, err)
		assert.Equal(t, "email is invalid", s.Snapshot().Error)
	})
}

func TestVerify(t *testing.T) {
	s, gw, _ := resolvedStore(t)
	gw.On("Verify", mock.Anything, "a@b.com", "000000").Return(gateway.Session{}, gateway.ErrTransport).Once()
	gw.On("Verify", mock.Anything, "a@b.com", "123456").Return(gateway.Session{Token: "tok", User: ada}, nil).Once()

	_, err := s.Verify(context.Background(), "a@b.com", "000000")
	require.Error(t, err)
	assert.Equal(t, VerificationFailed, s.Snapshot().Error)

	user, err := s.Verify(context.Background(), "a@b.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, ada, user)
	assert.Equal(t, Authenticated, s.Status())
}

func TestLogout(t *testing.T) {
	s, gw, tokens := newStore(t, "tok")
	gw.On("Me", mock.Anything, "tok").Return(ada, nil).Once()
	s.CheckAuth(context.Background())

	s.Logout()

	assert.Nil(t, s.Snapshot().User)
	assert.Equal(t, Anonymous, s.Status())
	_, ok := tokens.Token()
	assert.False(t, ok)
	_, ok = s.Token()
	assert.False(t, ok)

	s.Logout()
}

func TestUpdateUser(t *testing.T) {
	s, gw, _ := newStore(t, "tok")
	gw.On("Me", mock.Anything, "tok").Return(ada, nil).Once()
	s.CheckAuth(context.Background())

	name := "X"
	s.UpdateUser(gateway.UserPatch{DisplayName: &name})

	snap := s.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, ada.ID, snap.User.ID)
	assert.Equal(t, "X", snap.User.DisplayName)
	assert.Equal(t, "ada", snap.User.Username)
}

func TestUpdateUser_NoUserIsNoop(t *testing.T) {
	s, _, _ := resolvedStore(t)

	name := "X"
	s.UpdateUser(gateway.UserPatch{DisplayName: &name})

	assert.Nil(t, s.Snapshot().User)
	assert.Equal(t, Anonymous, s.Status())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s, gw, _ := newStore(t, "tok")
	gw.On("Me", mock.Anything, "tok").Return(ada, nil).Once()
	s.CheckAuth(context.Background())

	snap := s.Snapshot()
	snap.User.DisplayName = "mutated"

	assert.Equal(t, "Y", s.Snapshot().User.DisplayName)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "unresolved", Unresolved.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "anonymous", Anonymous.String())
}
