// Package sqlfile runs an administrative SQL script against the database in one shot.
package sqlfile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dtroode/socialhub/internal/logger"
)

// ErrEmptyScript is returned when the script has no statements to run.
var ErrEmptyScript = errors.New("sql script is empty")

// Applier executes whole SQL scripts inside a single transaction.
type Applier struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewApplier(db *sql.DB, logger *logger.Logger) *Applier {
	return &Applier{db: db, logger: logger}
}

// Open connects to dsn through the pgx database/sql driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// ApplyFile reads path and applies its contents.
func (a *Applier) ApplyFile(ctx context.Context, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sql file: %w", err)
	}

	a.logger.Info("SQL apply: applying file",
		"path", path,
		"bytes", len(script))

	return a.Apply(ctx, string(script))
}

// Apply runs script as one Exec call. Either all of it commits or none does.
func (a *Applier) Apply(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return ErrEmptyScript
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			a.logger.Error("SQL apply: rollback failed",
				"error", rbErr.Error())
		}
		return fmt.Errorf("failed to execute sql script: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sql script: %w", err)
	}

	a.logger.Info("SQL apply: script applied successfully")
	return nil
}
