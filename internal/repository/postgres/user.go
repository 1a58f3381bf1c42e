package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/socialhub/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, email, username, display_name, bio, avatar_key, password_hash,
			  verified_at, created_at, updated_at, deleted_at`

type UserRepository struct {
	db querier
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users WHERE email = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return model.User{}, translate(err, "get user by email")
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users WHERE username = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return model.User{}, translate(err, "get user by username")
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return model.User{}, translate(err, "get user by id")
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, email, username, display_name, bio, avatar_key, password_hash,
			  verified_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING ` + userColumns

	saved, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.DisplayName, user.Bio, user.AvatarKey,
		user.PasswordHash, user.VerifiedAt, user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return model.User{}, translate(err, "create user")
	}
	return saved, nil
}

// Update overwrites the mutable profile columns of an existing user.
func (r *UserRepository) Update(ctx context.Context, user model.User) (model.User, error) {
	query := `UPDATE users
			  SET username = $2, display_name = $3, bio = $4, avatar_key = $5, updated_at = $6
			  WHERE id = $1 AND deleted_at IS NULL
			  RETURNING ` + userColumns

	saved, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID, user.Username, user.DisplayName, user.Bio, user.AvatarKey, user.UpdatedAt,
	))
	if err != nil {
		return model.User{}, translate(err, "update user")
	}
	return saved, nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET verified_at = $2, updated_at = $2
			  WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return translate(err, "mark user verified")
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.DisplayName, &user.Bio, &user.AvatarKey,
		&user.PasswordHash, &user.VerifiedAt, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	return user, err
}
