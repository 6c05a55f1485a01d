package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"image-editor/internal/database"
	"image-editor/internal/startup"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
	// Minimum accepted password length
	minPasswordLength = 6
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// manager runs account commands against one database. readPassword is
// swapped out in tests.
type manager struct {
	db           *database.Database
	out          io.Writer
	readPassword func(prompt string) ([]byte, error)
}

func readTerminalPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return password, err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func capFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:  "cap",
		Usage: "Capability to grant (repeatable)",
		Value: []string{database.CapabilityUploadFiles},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "resetpw",
		Usage: "Image Editor account management",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-dir",
				Usage:   "Path to database directory",
				Value:   defaultDatabaseDir,
				Sources: cli.EnvVars("DATABASE_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a user",
				ArgsUsage: "<username>",
				Flags:     []cli.Flag{capFlag()},
				Action: withManager(func(ctx context.Context, m *manager, cmd *cli.Command) error {
					return m.createUser(ctx, cmd.Args().First(), cmd.StringSlice("cap"))
				}),
			},
			{
				Name:      "reset",
				Usage:     "Reset a user's password and end their sessions",
				ArgsUsage: "<username>",
				Action: withManager(func(ctx context.Context, m *manager, cmd *cli.Command) error {
					return m.resetPassword(ctx, cmd.Args().First())
				}),
			},
			{
				Name:      "grant",
				Usage:     "Replace a user's capabilities",
				ArgsUsage: "<username>",
				Flags:     []cli.Flag{capFlag()},
				Action: withManager(func(ctx context.Context, m *manager, cmd *cli.Command) error {
					return m.grant(ctx, cmd.Args().First(), cmd.StringSlice("cap"))
				}),
			},
			{
				Name:  "status",
				Usage: "List configured users",
				Action: withManager(func(ctx context.Context, m *manager, _ *cli.Command) error {
					return m.showStatus(ctx)
				}),
			},
		},
	}
}

// withManager opens the database named by --database-dir for the duration of
// one command.
func withManager(fn func(context.Context, *manager, *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		databaseDir := cmd.String("database-dir")
		if databaseDir == "" {
			databaseDir = defaultDatabaseDir
		}

		db, err := database.New(ctx, databasePath(databaseDir))
		if err != nil {
			return fmt.Errorf("failed to connect to database (DATABASE_DIR=%s): %w", databaseDir, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}()

		m := &manager{db: db, out: os.Stdout, readPassword: readTerminalPassword}
		return fn(ctx, m, cmd)
	}
}

func databasePath(dir string) string {
	return filepath.Join(dir, startup.DatabaseFileName)
}

// promptPassword asks for a password twice and validates it.
func (m *manager) promptPassword() (string, error) {
	password, err := m.readPassword("New Password: ")
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	confirm, err := m.readPassword("Confirm Password: ")
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return checkPassword(password, confirm)
}

func checkPassword(password, confirm []byte) (string, error) {
	if !bytes.Equal(password, confirm) {
		return "", errPasswordMismatch
	}
	if len(password) < minPasswordLength {
		return "", errPasswordTooShort
	}
	return string(password), nil
}

func requireUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("a username is required")
	}
	return username, nil
}

func (m *manager) createUser(ctx context.Context, username string, caps []string) error {
	username, err := requireUsername(username)
	if err != nil {
		return err
	}

	password, err := m.promptPassword()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := m.db.CreateUser(ctx, username, password, caps)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Created user %s (capabilities: %s)\n", u.Username, formatCapabilities(u.Capabilities))
	return nil
}

func (m *manager) resetPassword(ctx context.Context, username string) error {
	username, err := requireUsername(username)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := m.db.GetUser(ctx, username); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no user named %q; use 'resetpw create' first", username)
		}
		return err
	}

	password, err := m.promptPassword()
	if err != nil {
		return err
	}

	if err := m.db.UpdatePassword(ctx, username, password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Fprintln(m.out, "Password updated successfully.")
	fmt.Fprintln(m.out, "All existing sessions for this user have been invalidated.")
	return nil
}

func (m *manager) grant(ctx context.Context, username string, caps []string) error {
	username, err := requireUsername(username)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := m.db.SetCapabilities(ctx, username, caps); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no user named %q", username)
		}
		return err
	}
	fmt.Fprintf(m.out, "Capabilities for %s: %s\n", username, formatCapabilities(caps))
	return nil
}

func (m *manager) showStatus(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	users, err := m.db.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(m.out, "Status: No users configured (run 'resetpw create <username>')")
		return nil
	}

	fmt.Fprintf(m.out, "Status: %d user(s) configured\n", len(users))
	for _, u := range users {
		fmt.Fprintf(m.out, "  %-20s %s\n", u.Username, formatCapabilities(u.Capabilities))
	}
	return nil
}

func formatCapabilities(caps []string) string {
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(caps, ", ")
}
