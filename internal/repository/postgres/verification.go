package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/socialhub/internal/model"
)

// Ensure VerificationRepository implements the model.VerificationStore interface.
var _ model.VerificationStore = (*VerificationRepository)(nil)

type VerificationRepository struct {
	db querier
}

func NewVerificationRepository(db *Connection) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(ctx context.Context, code model.VerificationCode) error {
	const query = `
        INSERT INTO verification_codes (id, email, code_hash, attempts, expires_at, consumed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	if _, err := r.db.Exec(ctx, query,
		code.ID,
		code.Email,
		code.CodeHash,
		code.Attempts,
		code.ExpiresAt,
		code.Consumed,
		code.CreatedAt,
	); err != nil {
		return translate(err, "create verification code")
	}
	return nil
}

// GetLatest returns the most recently issued code for email. Older codes are
// superseded and never checked.
func (r *VerificationRepository) GetLatest(ctx context.Context, email string) (model.VerificationCode, error) {
	const query = `
        SELECT id, email, code_hash, attempts, expires_at, consumed, created_at
        FROM verification_codes
        WHERE email = $1
        ORDER BY created_at DESC
        LIMIT 1
    `
	var vc model.VerificationCode
	if err := r.db.QueryRow(ctx, query, email).Scan(
		&vc.ID,
		&vc.Email,
		&vc.CodeHash,
		&vc.Attempts,
		&vc.ExpiresAt,
		&vc.Consumed,
		&vc.CreatedAt,
	); err != nil {
		return model.VerificationCode{}, translate(err, "get latest verification code")
	}
	return vc, nil
}

func (r *VerificationRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	const query = `
        UPDATE verification_codes
        SET attempts = attempts + 1
        WHERE id = $1
    `
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return translate(err, "increment verification attempts")
	}
	return nil
}

// Consume marks the code used. A code already consumed reports model.ErrNotFound
// so two concurrent verifications cannot both succeed.
func (r *VerificationRepository) Consume(ctx context.Context, id uuid.UUID) error {
	const query = `
        UPDATE verification_codes
        SET consumed = TRUE
        WHERE id = $1 AND consumed = FALSE
    `
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return translate(err, "consume verification code")
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
