package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/model"
)

const (
	minPasswordLength    = 8
	maxPasswordLength    = 72 // bcrypt rejects longer input
	maxDisplayNameLength = 50
	maxBioLength         = 280
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

type Auth struct {
	userStore    model.UserStore
	codeStore    model.VerificationStore
	codeSender   model.CodeSender
	tokenService *TokenService
	clock        clockwork.Clock
	logger       *logger.Logger
	hashCost     int
	generateCode func() (string, error)
}

func NewAuth(
	userStore model.UserStore,
	codeStore model.VerificationStore,
	codeSender model.CodeSender,
	tokenService *TokenService,
	clock clockwork.Clock,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		codeStore:    codeStore,
		codeSender:   codeSender,
		tokenService: tokenService,
		clock:        clock,
		logger:       logger,
		hashCost:     bcrypt.DefaultCost,
		generateCode: generateCode,
	}
}

func (a *Auth) Register(ctx context.Context, params model.RegisterParams) (model.Session, error) {
	params.Email = normalizeEmail(params.Email)
	params.Username = strings.ToLower(strings.TrimSpace(params.Username))
	params.DisplayName = strings.TrimSpace(params.DisplayName)

	a.logger.Debug("Auth service: starting user registration",
		"email", params.Email,
		"username", params.Username)

	if err := validateRegistration(params); err != nil {
		return model.Session{}, err
	}

	if err := a.ensureEmailFree(ctx, params.Email); err != nil {
		return model.Session{}, err
	}
	if err := a.ensureUsernameFree(ctx, params.Username, uuid.Nil); err != nil {
		return model.Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), a.hashCost)
	if err != nil {
		return model.Session{}, apperr.Internal("failed to hash password", err)
	}

	displayName := params.DisplayName
	if displayName == "" {
		displayName = params.Username
	}

	now := a.clock.Now()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Email:        params.Email,
		Username:     params.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrDuplicate) {
		return model.Session{}, apperr.Conflict("email or username is already taken")
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", params.Email,
			"error", err.Error())
		return model.Session{}, apperr.Internal("failed to create user", err)
	}

	session, err := a.openSession(ctx, user)
	if err != nil {
		return model.Session{}, err
	}

	a.logger.Info("Auth service: user registration completed successfully",
		"user_id", user.ID,
		"email", user.Email)

	return session, nil
}

func (a *Auth) Login(ctx context.Context, email, password string) (model.Session, error) {
	email = normalizeEmail(email)

	a.logger.Debug("Auth service: starting user login",
		"email", email)

	if email == "" || password == "" {
		return model.Session{}, apperr.Validation("email and password are required")
	}

	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: login for unknown email",
			"email", email)
		return model.Session{}, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return model.Session{}, apperr.Internal("failed to get user by email", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		a.logger.Info("Auth service: password mismatch",
			"user_id", user.ID)
		return model.Session{}, apperr.Unauthorized("invalid credentials")
	}

	session, err := a.openSession(ctx, user)
	if err != nil {
		return model.Session{}, err
	}

	a.logger.Info("Auth service: login completed successfully",
		"user_id", user.ID)

	return session, nil
}

// Me returns the account behind an authenticated request.
func (a *Auth) Me(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return model.User{}, apperr.Internal("failed to get user by id", err)
	}
	return user, nil
}

func (a *Auth) UpdateProfile(ctx context.Context, userID uuid.UUID, update model.ProfileUpdate) (model.User, error) {
	user, err := a.Me(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	if update.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*update.Username))
		if !usernamePattern.MatchString(username) {
			return model.User{}, apperr.Validation("username must be 3-30 characters of a-z, 0-9 or _")
		}
		if username != user.Username {
			if err := a.ensureUsernameFree(ctx, username, user.ID); err != nil {
				return model.User{}, err
			}
			user.Username = username
		}
	}
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
			return model.User{}, apperr.Validation(fmt.Sprintf("display name must be 1-%d characters", maxDisplayNameLength))
		}
		user.DisplayName = name
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return model.User{}, apperr.Validation(fmt.Sprintf("bio must be at most %d characters", maxBioLength))
		}
		user.Bio = bio
	}

	user.UpdatedAt = a.clock.Now()
	saved, err := a.userStore.Update(ctx, user)
	if errors.Is(err, model.ErrDuplicate) {
		return model.User{}, apperr.Conflict("username is already taken")
	}
	if err != nil {
		return model.User{}, apperr.Internal("failed to update user", err)
	}

	a.logger.Info("Auth service: profile updated",
		"user_id", saved.ID)

	return saved, nil
}

// RequestVerification issues a fresh one-time code for email. Unknown addresses
// succeed silently so the endpoint does not reveal which emails are registered.
func (a *Auth) RequestVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.Validation("a valid email is required")
	}

	_, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: verification requested for unknown email",
			"email", email)
		return nil
	}
	if err != nil {
		return apperr.Internal("failed to get user by email", err)
	}

	code, err := a.generateCode()
	if err != nil {
		return apperr.Internal("failed to generate verification code", err)
	}

	now := a.clock.Now()
	err = a.codeStore.Create(ctx, model.VerificationCode{
		ID:        uuid.New(),
		Email:     email,
		CodeHash:  hashCode(code),
		ExpiresAt: now.Add(model.VerificationCodeTTL),
		CreatedAt: now,
	})
	if err != nil {
		return apperr.Internal("failed to store verification code", err)
	}

	if err := a.codeSender.SendCode(ctx, email, code); err != nil {
		return apperr.Internal("failed to send verification code", err)
	}

	a.logger.Info("Auth service: verification code issued",
		"email", email)

	return nil
}

// Verify exchanges a one-time code for a session and marks the account verified.
func (a *Auth) Verify(ctx context.Context, email, code string) (model.Session, error) {
	email = normalizeEmail(email)
	if !isCode(code) {
		return model.Session{}, apperr.Validation(fmt.Sprintf("verification code must be %d digits", model.VerificationCodeLength))
	}

	pending, err := a.codeStore.GetLatest(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, apperr.Unauthorized("no pending verification")
	}
	if err != nil {
		return model.Session{}, apperr.Internal("failed to get verification code", err)
	}

	switch {
	case pending.Consumed:
		return model.Session{}, apperr.Unauthorized("verification code already used")
	case a.clock.Now().After(pending.ExpiresAt):
		return model.Session{}, apperr.Unauthorized("verification code expired")
	case pending.Attempts >= model.MaxVerificationAttempts:
		return model.Session{}, apperr.Unauthorized("too many attempts")
	}

	if subtle.ConstantTimeCompare(pending.CodeHash, hashCode(code)) != 1 {
		if err := a.codeStore.IncrementAttempts(ctx, pending.ID); err != nil {
			a.logger.Error("Auth service: failed to record verification attempt",
				"email", email,
				"error", err.Error())
		}
		return model.Session{}, apperr.Unauthorized("invalid verification code")
	}

	err = a.codeStore.Consume(ctx, pending.ID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, apperr.Unauthorized("verification code already used")
	}
	if err != nil {
		return model.Session{}, apperr.Internal("failed to consume verification code", err)
	}

	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return model.Session{}, apperr.Internal("failed to get user by email", err)
	}

	if !user.Verified() {
		now := a.clock.Now()
		if err := a.userStore.MarkVerified(ctx, user.ID, now); err != nil {
			return model.Session{}, apperr.Internal("failed to mark user verified", err)
		}
		user.VerifiedAt = &now
	}

	session, err := a.openSession(ctx, user)
	if err != nil {
		return model.Session{}, err
	}

	a.logger.Info("Auth service: verification completed successfully",
		"user_id", user.ID)

	return session, nil
}

func (a *Auth) openSession(ctx context.Context, user model.User) (model.Session, error) {
	access, refresh, err := a.tokenService.Issue(ctx, user.ID)
	if err != nil {
		return model.Session{}, apperr.Internal("failed to issue token", err)
	}
	return model.Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (a *Auth) ensureEmailFree(ctx context.Context, email string) error {
	_, err := a.userStore.GetByEmail(ctx, email)
	if err == nil {
		a.logger.Info("Auth service: email already registered",
			"email", email)
		return apperr.Conflict("email is already registered")
	}
	if !errors.Is(err, model.ErrNotFound) {
		return apperr.Internal("failed to get user by email", err)
	}
	return nil
}

func (a *Auth) ensureUsernameFree(ctx context.Context, username string, owner uuid.UUID) error {
	existing, err := a.userStore.GetByUsername(ctx, username)
	if err == nil && existing.ID != owner {
		return apperr.Conflict("username is already taken")
	}
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return apperr.Internal("failed to get user by username", err)
	}
	return nil
}

func validateRegistration(p model.RegisterParams) error {
	if p.Email == "" {
		return apperr.Validation("email is required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return apperr.Validation("email is invalid")
	}
	if len(p.Password) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(p.Password) > maxPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordLength))
	}
	if !usernamePattern.MatchString(p.Username) {
		return apperr.Validation("username must be 3-30 characters of a-z, 0-9 or _")
	}
	if utf8.RuneCountInString(p.DisplayName) > maxDisplayNameLength {
		return apperr.Validation(fmt.Sprintf("display name must be 1-%d characters", maxDisplayNameLength))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isCode(code string) bool {
	if len(code) != model.VerificationCodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hashCode(code string) []byte {
	h := sha256.Sum256([]byte(code))
	return h[:]
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
