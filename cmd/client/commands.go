package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dtroode/socialhub/internal/client/gateway"
	"github.com/dtroode/socialhub/internal/client/session"
	"github.com/dtroode/socialhub/internal/client/tokenstore"
	"github.com/dtroode/socialhub/internal/client/verify"
	"github.com/dtroode/socialhub/internal/config"
	"github.com/dtroode/socialhub/internal/logger"
)

var errNotSignedIn = errors.New("not signed in")

// app holds what every command needs once the session is resolved.
type app struct {
	gateway *gateway.Gateway
	store   *session.Store
	logger  *logger.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "socialhub",
		Short:         "Command line client of the socialhub account API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.AddCommand(
		a.loginCommand(),
		a.registerCommand(),
		a.whoamiCommand(),
		a.logoutCommand(),
		a.requestCodeCommand(),
		a.verifyCommand(),
		a.profileCommand(),
	)

	return root
}

// init builds the session and blocks until it is resolved, so commands only
// ever see an authenticated or anonymous session.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.NewClientConfig()
	if err != nil {
		return err
	}

	a.logger = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	a.gateway = gateway.New(cfg.BaseURL, cfg.Timeout, a.logger)
	a.store = session.New(a.gateway, tokenstore.NewFile(cfg.TokenFile), a.logger)

	ctx := cmd.Context()
	go a.store.CheckAuth(ctx)
	return a.store.Wait(ctx)
}

func (a *app) loginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = readLine(cmd, "Password: "); err != nil {
					return err
				}
			}

			user, err := a.store.Login(cmd.Context(), email, password)
			if err != nil {
				return a.failure()
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password, read from stdin when empty")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	var payload gateway.RegisterPayload

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if payload.Password == "" {
				var err error
				if payload.Password, err = readLine(cmd, "Password: "); err != nil {
					return err
				}
			}

			user, err := a.store.Register(cmd.Context(), payload)
			if err != nil {
				return a.failure()
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload.Email, "email", "", "account email")
	cmd.Flags().StringVar(&payload.Password, "password", "", "account password, read from stdin when empty")
	cmd.Flags().StringVar(&payload.Username, "username", "", "unique handle")
	cmd.Flags().StringVar(&payload.DisplayName, "display-name", "", "name shown to other users")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := a.store.Snapshot()
			if snap.User == nil {
				return errNotSignedIn
			}
			printUser(cmd.OutOrStdout(), *snap.User)
			return nil
		},
	}
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.store.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		},
	}
}

func (a *app) requestCodeCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "request-code",
		Short: "Send a one-time verification code to an email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.gateway.RequestVerification(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "verification code sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) verifyCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "verify CODE",
		Short: "Sign in with a one-time verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			flow := verify.New(func(ctx context.Context, code string) error {
				user, err := a.store.Verify(ctx, email, code)
				if err != nil {
					return err
				}
				printUser(out, user)
				return nil
			}, verify.NotifierFunc(func(msg string) {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}))

			flow.Input(args[0])
			err := flow.Submit(cmd.Context())
			if errors.Is(err, verify.ErrIncompleteCode) {
				return err
			}
			if err != nil {
				return a.failure()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) profileCommand() *cobra.Command {
	var username, displayName, bio string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update profile fields of the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, ok := a.store.Token()
			if !ok {
				return errNotSignedIn
			}

			var patch gateway.UserPatch
			flags := cmd.Flags()
			if flags.Changed("username") {
				patch.Username = &username
			}
			if flags.Changed("display-name") {
				patch.DisplayName = &displayName
			}
			if flags.Changed("bio") {
				patch.Bio = &bio
			}

			saved, err := a.gateway.UpdateProfile(cmd.Context(), token, patch)
			if err != nil {
				return err
			}
			a.store.UpdateUser(gateway.UserPatch{
				Username:    &saved.Username,
				DisplayName: &saved.DisplayName,
				Bio:         &saved.Bio,
			})

			printUser(cmd.OutOrStdout(), *a.store.Snapshot().User)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "new handle")
	cmd.Flags().StringVar(&displayName, "display-name", "", "new display name")
	cmd.Flags().StringVar(&bio, "bio", "", "new bio")
	return cmd
}

// failure reports the message the session stored for the failed operation.
func (a *app) failure() error {
	return errors.New(a.store.Snapshot().Error)
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printUser(w io.Writer, u gateway.User) {
	fmt.Fprintf(w, "%s (@%s) <%s>\n", u.DisplayName, u.Username, u.Email)
	if u.Bio != "" {
		fmt.Fprintf(w, "  %s\n", u.Bio)
	}
	if !u.Verified {
		fmt.Fprintln(w, "  email not verified")
	}
}
