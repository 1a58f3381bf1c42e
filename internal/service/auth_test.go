package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/mocks"
	"github.com/dtroode/socialhub/internal/model"
	"github.com/dtroode/socialhub/internal/testutil"
)

var authNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type authFixture struct {
	auth       *Auth
	users      *mocks.UserStore
	codes      *mocks.VerificationStore
	sender     *mocks.CodeSender
	manager    *mocks.TokenManager
	refreshes  *mocks.RefreshTokenStore
	clock      *clockwork.FakeClock
	issuedCode string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:      mocks.NewUserStore(t),
		codes:      mocks.NewVerificationStore(t),
		sender:     mocks.NewCodeSender(t),
		manager:    mocks.NewTokenManager(t),
		refreshes:  mocks.NewRefreshTokenStore(t),
		clock:      clockwork.NewFakeClockAt(authNow),
		issuedCode: "042137",
	}
	log := testutil.MakeNoopLogger()
	tokens := NewTokenService(f.manager, f.refreshes, f.clock, log)
	f.auth = NewAuth(f.users, f.codes, f.sender, tokens, f.clock, log)
	f.auth.hashCost = bcrypt.MinCost
	f.auth.generateCode = func() (string, error) { return f.issuedCode, nil }
	return f
}

func (f *authFixture) expectSession(userID uuid.UUID) {
	f.manager.On("GenerateAccessToken", userID).Return("access", nil).Once()
	f.manager.On("GenerateRefreshToken", userID).Return("refresh", "jti", nil).Once()
	f.refreshes.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func TestAuth_Register_Success(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(model.User{}, model.ErrNotFound).Once()
	f.users.On("GetByUsername", ctx, "ada").Return(model.User{}, model.ErrNotFound).Once()

	var created model.User
	f.users.On("Create", ctx, mock.MatchedBy(func(u model.User) bool {
		return u.Email == "ada@example.com" && u.Username == "ada" && u.DisplayName == "ada"
	})).Run(func(args mock.Arguments) {
		created = args.Get(1).(model.User)
	}).Return(func(_ context.Context, u model.User) model.User { return u }, nil).Once()

	f.manager.On("GenerateAccessToken", mock.Anything).Return("access", nil).Once()
	f.manager.On("GenerateRefreshToken", mock.Anything).Return("refresh", "jti", nil).Once()
	f.refreshes.On("Create", ctx, mock.Anything).Return(nil).Once()

	session, err := f.auth.Register(ctx, model.RegisterParams{
		Email:    "  Ada@Example.com ",
		Password: "correct horse",
		Username: "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "access", session.AccessToken)
	assert.Equal(t, "refresh", session.RefreshToken)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, authNow, created.CreatedAt)
	assert.False(t, session.User.Verified())
	require.NoError(t, bcrypt.CompareHashAndPassword(created.PasswordHash, []byte("correct horse")))
}

func TestAuth_Register_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params model.RegisterParams
	}{
		{name: "missing email", params: model.RegisterParams{Password: "password1", Username: "ada"}},
		{name: "bad email", params: model.RegisterParams{Email: "nope", Password: "password1", Username: "ada"}},
		{name: "short password", params: model.RegisterParams{Email: "a@b.co", Password: "short", Username: "ada"}},
		{name: "bad username", params: model.RegisterParams{Email: "a@b.co", Password: "password1", Username: "a!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)

			_, err := f.auth.Register(context.Background(), tt.params)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestAuth_Register_EmailTaken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "a@b.co").Return(model.User{ID: uuid.New()}, nil).Once()

	_, err := f.auth.Register(ctx, model.RegisterParams{Email: "a@b.co", Password: "password1", Username: "ada"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAuth_Register_UsernameTaken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "a@b.co").Return(model.User{}, model.ErrNotFound).Once()
	f.users.On("GetByUsername", ctx, "ada").Return(model.User{ID: uuid.New()}, nil).Once()

	_, err := f.auth.Register(ctx, model.RegisterParams{Email: "a@b.co", Password: "password1", Username: "ada"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAuth_Register_DuplicateOnInsert(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "a@b.co").Return(model.User{}, model.ErrNotFound).Once()
	f.users.On("GetByUsername", ctx, "ada").Return(model.User{}, model.ErrNotFound).Once()
	f.users.On("Create", ctx, mock.Anything).Return(model.User{}, model.ErrDuplicate).Once()

	_, err := f.auth.Register(ctx, model.RegisterParams{Email: "a@b.co", Password: "password1", Username: "ada"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAuth_Register_StoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "a@b.co").Return(model.User{}, assert.AnError).Once()

	_, err := f.auth.Register(ctx, model.RegisterParams{Email: "a@b.co", Password: "password1", Username: "ada"})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAuth_Login_Success(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := model.User{ID: uuid.New(), Email: "a@b.co", PasswordHash: mustHash(t, "password1")}

	f.users.On("GetByEmail", ctx, "a@b.co").Return(user, nil).Once()
	f.expectSession(user.ID)

	session, err := f.auth.Login(ctx, "A@B.co", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
	assert.Equal(t, "access", session.AccessToken)
}

func TestAuth_Login_InvalidCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", ctx, "a@b.co").Return(model.User{}, model.ErrNotFound).Once()

		_, err := f.auth.Login(ctx, "a@b.co", "password1")
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", ctx, "a@b.co").
			Return(model.User{ID: uuid.New(), PasswordHash: mustHash(t, "password1")}, nil).Once()

		_, err := f.auth.Login(ctx, "a@b.co", "password2")
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("empty input", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.auth.Login(ctx, "", "")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestAuth_Me(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := model.User{ID: uuid.New(), Username: "ada"}

	f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
	got, err := f.auth.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	missing := uuid.New()
	f.users.On("GetByID", ctx, missing).Return(model.User{}, model.ErrNotFound).Once()
	_, err = f.auth.Me(ctx, missing)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestAuth_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := model.User{ID: uuid.New(), Username: "ada", DisplayName: "Ada", Bio: "old"}

	name := "  Ada Lovelace "
	bio := "Analyst"
	username := "Lovelace"

	f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
	f.users.On("GetByUsername", ctx, "lovelace").Return(model.User{}, model.ErrNotFound).Once()
	f.users.On("Update", ctx, mock.MatchedBy(func(u model.User) bool {
		return u.Username == "lovelace" &&
			u.DisplayName == "Ada Lovelace" &&
			u.Bio == "Analyst" &&
			u.UpdatedAt.Equal(authNow)
	})).Return(func(_ context.Context, u model.User) model.User { return u }, nil).Once()

	got, err := f.auth.UpdateProfile(ctx, user.ID, model.ProfileUpdate{
		Username:    &username,
		DisplayName: &name,
		Bio:         &bio,
	})
	require.NoError(t, err)
	assert.Equal(t, "lovelace", got.Username)
	assert.Equal(t, "Ada Lovelace", got.DisplayName)
}

func TestAuth_UpdateProfile_KeepsUnsetFields(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := model.User{ID: uuid.New(), Username: "ada", DisplayName: "Ada", Bio: "keep"}
	bio := "new bio"

	f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
	f.users.On("Update", ctx, mock.MatchedBy(func(u model.User) bool {
		return u.Username == "ada" && u.DisplayName == "Ada" && u.Bio == "new bio"
	})).Return(func(_ context.Context, u model.User) model.User { return u }, nil).Once()

	_, err := f.auth.UpdateProfile(ctx, user.ID, model.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
}

func TestAuth_UpdateProfile_Errors(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Username: "ada", DisplayName: "Ada"}

	t.Run("username taken", func(t *testing.T) {
		f := newAuthFixture(t)
		taken := "bob"
		f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
		f.users.On("GetByUsername", ctx, "bob").Return(model.User{ID: uuid.New()}, nil).Once()

		_, err := f.auth.UpdateProfile(ctx, user.ID, model.ProfileUpdate{Username: &taken})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("blank display name", func(t *testing.T) {
		f := newAuthFixture(t)
		blank := "   "
		f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()

		_, err := f.auth.UpdateProfile(ctx, user.ID, model.ProfileUpdate{DisplayName: &blank})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("duplicate on update", func(t *testing.T) {
		f := newAuthFixture(t)
		bio := "x"
		f.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
		f.users.On("Update", ctx, mock.Anything).Return(model.User{}, model.ErrDuplicate).Once()

		_, err := f.auth.UpdateProfile(ctx, user.ID, model.ProfileUpdate{Bio: &bio})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}

func TestAuth_RequestVerification(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "a@b.co").Return(model.User{ID: uuid.New()}, nil).Once()
	f.codes.On("Create", ctx, mock.MatchedBy(func(c model.VerificationCode) bool {
		return c.Email == "a@b.co" &&
			string(c.CodeHash) == string(hashCode("042137")) &&
			c.ExpiresAt.Equal(authNow.Add(model.VerificationCodeTTL))
	})).Return(nil).Once()
	f.sender.On("SendCode", ctx, "a@b.co", "042137").Return(nil).Once()

	require.NoError(t, f.auth.RequestVerification(ctx, "A@B.co"))
}

func TestAuth_RequestVerification_UnknownEmailIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.users.On("GetByEmail", ctx, "ghost@b.co").Return(model.User{}, model.ErrNotFound).Once()

	require.NoError(t, f.auth.RequestVerification(ctx, "ghost@b.co"))
	f.codes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.sender.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuth_RequestVerification_InvalidEmail(t *testing.T) {
	f := newAuthFixture(t)

	err := f.auth.RequestVerification(context.Background(), "not-an-email")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func pendingCode(code string) model.VerificationCode {
	return model.VerificationCode{
		ID:        uuid.New(),
		Email:     "a@b.co",
		CodeHash:  hashCode(code),
		ExpiresAt: authNow.Add(5 * time.Minute),
		CreatedAt: authNow.Add(-5 * time.Minute),
	}
}

func TestAuth_Verify_Success(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	pending := pendingCode("123456")
	user := model.User{ID: uuid.New(), Email: "a@b.co"}

	f.codes.On("GetLatest", ctx, "a@b.co").Return(pending, nil).Once()
	f.codes.On("Consume", ctx, pending.ID).Return(nil).Once()
	f.users.On("GetByEmail", ctx, "a@b.co").Return(user, nil).Once()
	f.users.On("MarkVerified", ctx, user.ID, authNow).Return(nil).Once()
	f.expectSession(user.ID)

	session, err := f.auth.Verify(ctx, "a@b.co", "123456")
	require.NoError(t, err)
	assert.True(t, session.User.Verified())
	assert.Equal(t, "access", session.AccessToken)
}

func TestAuth_Verify_AlreadyVerifiedSkipsMark(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	pending := pendingCode("123456")
	verifiedAt := authNow.Add(-24 * time.Hour)
	user := model.User{ID: uuid.New(), Email: "a@b.co", VerifiedAt: &verifiedAt}

	f.codes.On("GetLatest", ctx, "a@b.co").Return(pending, nil).Once()
	f.codes.On("Consume", ctx, pending.ID).Return(nil).Once()
	f.users.On("GetByEmail", ctx, "a@b.co").Return(user, nil).Once()
	f.expectSession(user.ID)

	_, err := f.auth.Verify(ctx, "a@b.co", "123456")
	require.NoError(t, err)
	f.users.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuth_Verify_WrongCodeCountsAttempt(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	pending := pendingCode("123456")

	f.codes.On("GetLatest", ctx, "a@b.co").Return(pending, nil).Once()
	f.codes.On("IncrementAttempts", ctx, pending.ID).Return(nil).Once()

	_, err := f.auth.Verify(ctx, "a@b.co", "654321")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestAuth_Verify_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.VerificationCode)
	}{
		{name: "consumed", mutate: func(c *model.VerificationCode) { c.Consumed = true }},
		{name: "expired", mutate: func(c *model.VerificationCode) { c.ExpiresAt = authNow.Add(-time.Second) }},
		{name: "too many attempts", mutate: func(c *model.VerificationCode) { c.Attempts = model.MaxVerificationAttempts }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newAuthFixture(t)
			pending := pendingCode("123456")
			tt.mutate(&pending)

			f.codes.On("GetLatest", ctx, "a@b.co").Return(pending, nil).Once()

			_, err := f.auth.Verify(ctx, "a@b.co", "123456")
			assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
		})
	}
}

func TestAuth_Verify_NoPendingCode(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.codes.On("GetLatest", ctx, "a@b.co").Return(model.VerificationCode{}, model.ErrNotFound).Once()

	_, err := f.auth.Verify(ctx, "a@b.co", "123456")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestAuth_Verify_MalformedCode(t *testing.T) {
	f := newAuthFixture(t)

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		_, err := f.auth.Verify(context.Background(), "a@b.co", code)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), code)
	}
}

func TestGenerateCode(t *testing.T) {
	for range 20 {
		code, err := generateCode()
		require.NoError(t, err)
		assert.True(t, isCode(code), code)
	}
}
