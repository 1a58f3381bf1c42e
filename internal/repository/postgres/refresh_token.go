package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/socialhub/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

const refreshTokenColumns = `id, jti, user_id, token_hash, issued_at, expires_at, revoked_at,
			  rotated_from_jti, created_at, updated_at`

// RefreshTokenRepository keeps one row per issued refresh token, keyed by jti.
type RefreshTokenRepository struct {
	db querier
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = token.IssuedAt
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = token.CreatedAt
	}

	if _, err := r.db.Exec(ctx, query,
		token.ID,
		token.JTI,
		token.UserID,
		token.TokenHash,
		token.IssuedAt,
		token.ExpiresAt,
		token.RevokedAt,
		token.RotatedFromJTI,
		token.CreatedAt,
		token.UpdatedAt,
	); err != nil {
		return translate(err, "create refresh token")
	}
	return nil
}

func (r *RefreshTokenRepository) GetByJTI(ctx context.Context, jti string) (model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + `
			  FROM refresh_tokens WHERE jti = $1`

	token, err := scanRefreshToken(r.db.QueryRow(ctx, query, jti))
	if err != nil {
		return model.RefreshToken{}, translate(err, "get refresh token")
	}
	return token, nil
}

// RevokeByJTI revokes a live token. A token that is unknown or already
// revoked reports model.ErrNotFound, so only one of two concurrent rotations
// of the same token wins.
func (r *RefreshTokenRepository) RevokeByJTI(ctx context.Context, jti string) error {
	query := `UPDATE refresh_tokens
			  SET revoked_at = NOW(), updated_at = NOW()
			  WHERE jti = $1 AND revoked_at IS NULL`

	tag, err := r.db.Exec(ctx, query, jti)
	if err != nil {
		return translate(err, "revoke refresh token")
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// RevokeAllByUser revokes every live token of a user. Having none is not an error.
func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE refresh_tokens
			  SET revoked_at = NOW(), updated_at = NOW()
			  WHERE user_id = $1 AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return translate(err, "revoke user refresh tokens")
	}
	return nil
}

func scanRefreshToken(row pgx.Row) (model.RefreshToken, error) {
	var token model.RefreshToken
	err := row.Scan(
		&token.ID, &token.JTI, &token.UserID, &token.TokenHash, &token.IssuedAt, &token.ExpiresAt,
		&token.RevokedAt, &token.RotatedFromJTI, &token.CreatedAt, &token.UpdatedAt,
	)
	return token, err
}
