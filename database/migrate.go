// Package database applies the embedded schema migrations with goose.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dtroode/socialhub/database/migrations"
)

const migrationsDir = "."

// Migrate brings the schema at dsn up to the latest version.
func Migrate(ctx context.Context, dsn string) error {
	return withDB(ctx, dsn, func(db *sql.DB) error {
		return goose.Up(db, migrationsDir)
	})
}

// Rollback reverts the most recently applied migration.
func Rollback(ctx context.Context, dsn string) error {
	return withDB(ctx, dsn, func(db *sql.DB) error {
		return goose.Down(db, migrationsDir)
	})
}

// Status prints the applied state of every migration through goose's logger.
func Status(ctx context.Context, dsn string) error {
	return withDB(ctx, dsn, func(db *sql.DB) error {
		return goose.Status(db, migrationsDir)
	})
}

func withDB(ctx context.Context, dsn string, fn func(db *sql.DB) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := fn(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
