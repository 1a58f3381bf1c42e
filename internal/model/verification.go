package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// VerificationCodeTTL is how long an issued code stays valid.
	VerificationCodeTTL = time.Minute * 10
	// VerificationCodeLength is the number of digits in a code.
	VerificationCodeLength = 6
	// MaxVerificationAttempts bounds wrong guesses against one code.
	MaxVerificationAttempts = 5
)

// VerificationStore persists one-time email verification codes.
type VerificationStore interface {
	Create(ctx context.Context, code VerificationCode) error
	GetLatest(ctx context.Context, email string) (VerificationCode, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	Consume(ctx context.Context, id uuid.UUID) error
}

// CodeSender delivers a verification code to its owner.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// VerificationCode describes an issued one-time code. Only its hash is stored.
type VerificationCode struct {
	ID        uuid.UUID
	Email     string
	CodeHash  []byte
	Attempts  int
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
}
