// Command migrate manages the database schema and runs one-shot SQL scripts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dtroode/socialhub/database"
	"github.com/dtroode/socialhub/internal/config"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/sqlfile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the socialhub database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if dsn != "" {
				return nil
			}
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			dsn = cfg.Database.DSN
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "postgres DSN, defaults to DATABASE_DSN")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return database.Migrate(cmd.Context(), dsn)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return database.Rollback(cmd.Context(), dsn)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the state of every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return database.Status(cmd.Context(), dsn)
			},
		},
		&cobra.Command{
			Use:   "apply FILE",
			Short: "Run a SQL file in a single transaction",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := sqlfile.Open(cmd.Context(), dsn)
				if err != nil {
					return err
				}
				defer db.Close()

				log := logger.NewWithWriter(cmd.ErrOrStderr(), 0)
				return sqlfile.NewApplier(db, log).ApplyFile(cmd.Context(), args[0])
			},
		},
	)

	return root
}
