package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for user accounts.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) (User, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
}

// User represents a stored account.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	DisplayName  string
	Bio          string
	AvatarKey    string
	PasswordHash []byte
	VerifiedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Verified reports whether the account confirmed its email address.
func (u User) Verified() bool {
	return u.VerifiedAt != nil
}

// RegisterParams is the registration payload accepted by the API.
type RegisterParams struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
}

// ProfileUpdate holds the profile fields a user may change. Nil fields are left untouched.
type ProfileUpdate struct {
	Username    *string
	DisplayName *string
	Bio         *string
}

// Session is the result of a successful authentication.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
}
