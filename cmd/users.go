// Package cmd provides command-line interface commands for the Argus dashboard.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"argus/config"
	"argus/storage"

	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for users commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

const (
	maxSeedFileSize = 1 * 1024 * 1024 // seed files are small; anything bigger is a mistake
	defaultTimeout  = 2 * time.Minute
)

// NewUsersCmd creates the root users command with all subcommands.
func NewUsersCmd() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage dashboard accounts",
		Long: `Manage dashboard accounts in the credential store.

Accounts carry a role (admin or analyst) that controls which dashboard
operations they may perform. Passwords are bcrypt-hashed before storage.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	usersCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	usersCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	usersCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	usersCmd.AddCommand(newCreateUserCmd())
	usersCmd.AddCommand(newListUsersCmd())
	usersCmd.AddCommand(newSeedUsersCmd())

	return usersCmd
}

// initUserStore connects to the credential store. The returned cleanup closes
// the connection pool.
func initUserStore(ctx context.Context) (storage.UserStorage, *config.Config, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	sugar := zap.NewNop().Sugar()

	var s *spinner.Spinner
	if !outputJSON && !quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Connecting to MongoDB..."
		s.Start()
	}

	mongo, err := storage.AcquireMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.MaxPoolSize, sugar)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	users, err := storage.NewMongoUserStore(ctx, mongo, sugar)
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongo.Close(closeCtx)
		return nil, nil, nil, fmt.Errorf("failed to initialize user store: %w", err)
	}

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongo.Close(closeCtx)
	}
	return users, cfg, cleanup, nil
}

// newCreateUserCmd creates the 'create' subcommand
func newCreateUserCmd() *cobra.Command {
	var (
		name string
		role string
	)

	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a dashboard account",
		Long: `Create a dashboard account with the given email.

The password is read from the ARGUS_USER_PASSWORD environment variable, or
prompted for interactively when the variable is unset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			email := args[0]
			if !storage.Role(role).Valid() {
				return fmt.Errorf("invalid role %q: must be admin or analyst", role)
			}

			password, err := readPassword()
			if err != nil {
				return err
			}

			users, cfg, cleanup, err := initUserStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			hash, err := storage.HashPassword(password, cfg.Auth.BcryptCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			user := &storage.User{
				Name:         name,
				Email:        email,
				PasswordHash: hash,
				Role:         storage.Role(role),
			}
			if err := users.CreateUser(ctx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			if outputJSON {
				return outputAsJSON(user)
			}
			successColor.Printf("✓ Created %s account %s\n", user.Role, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the account")
	cmd.Flags().StringVar(&role, "role", string(storage.RoleAnalyst), "Account role: admin or analyst")

	return cmd
}

// newListUsersCmd creates the 'list' subcommand
func newListUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List dashboard accounts",
		Long:    "Display a table of all dashboard accounts with their roles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			users, _, cleanup, err := initUserStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := users.ListUsers(ctx)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			if outputJSON {
				return outputAsJSON(list)
			}
			renderUsersTable(list)
			return nil
		},
	}
}

// seedFile is the YAML shape accepted by 'users seed'.
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// newSeedUsersCmd creates the 'seed' subcommand
func newSeedUsersCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed accounts from a YAML file",
		Long: `Create multiple dashboard accounts from a YAML file.

Existing accounts (matched by email) are skipped, so re-running a seed is
safe. The file must not be world-readable in production; it contains
plaintext passwords.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			seed, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			users, cfg, cleanup, err := initUserStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			created, skipped := 0, 0
			for _, su := range seed.Users {
				hash, err := storage.HashPassword(su.Password, cfg.Auth.BcryptCost)
				if err != nil {
					return fmt.Errorf("failed to hash password for %s: %w", su.Email, err)
				}
				user := &storage.User{
					Name:         su.Name,
					Email:        su.Email,
					PasswordHash: hash,
					Role:         storage.Role(su.Role),
				}
				err = users.CreateUser(ctx, user)
				switch {
				case err == nil:
					created++
					if !quiet && !outputJSON {
						successColor.Printf("✓ Created %s (%s)\n", su.Email, su.Role)
					}
				case errors.Is(err, storage.ErrDuplicateEmail):
					skipped++
					if !quiet && !outputJSON {
						warningColor.Printf("- Skipped %s (already exists)\n", su.Email)
					}
				default:
					return fmt.Errorf("failed to create %s: %w", su.Email, err)
				}
			}

			if outputJSON {
				return outputAsJSON(map[string]int{"created": created, "skipped": skipped})
			}
			if !quiet {
				infoColor.Printf("Seed complete: %d created, %d skipped\n", created, skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "users.yaml", "Seed file path")

	return cmd
}

// loadSeedFile reads and validates a YAML seed file.
func loadSeedFile(path string) (*seedFile, error) {
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("path traversal detected: '..' not allowed in file path")
	}

	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	if info.Size() > maxSeedFileSize {
		return nil, fmt.Errorf("seed file exceeds %d bytes", maxSeedFileSize)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(seed.Users) == 0 {
		return nil, fmt.Errorf("seed file contains no users")
	}
	for i, su := range seed.Users {
		if su.Email == "" || su.Password == "" {
			return nil, fmt.Errorf("seed entry %d: email and password are required", i+1)
		}
		if !storage.Role(su.Role).Valid() {
			return nil, fmt.Errorf("seed entry %d: invalid role %q", i+1, su.Role)
		}
	}
	return &seed, nil
}

// readPassword takes the password from the environment or an interactive
// prompt. The prompt never echoes.
func readPassword() (string, error) {
	if pw := os.Getenv("ARGUS_USER_PASSWORD"); pw != "" {
		return pw, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no terminal for password prompt: set ARGUS_USER_PASSWORD")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}

	fmt.Fprint(os.Stderr, "Confirm:  ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	if string(pw) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pw), nil
}
