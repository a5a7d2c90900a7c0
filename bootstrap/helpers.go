package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"argus/storage"
)

// GenerateSecurePassword generates a cryptographically secure random password.
func GenerateSecurePassword(length int) (string, error) {
	if length < 16 {
		length = 16
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}

// FirstRunResult reports what the first-run setup did.
type FirstRunResult struct {
	IsFirstRun    bool
	AdminCreated  bool
	AdminEmail    string
	AdminPassword string
}

// RunFirstRunSetup seeds a default admin account when the credential store is
// empty, so a fresh deployment has a way in. The generated password is printed
// once to stderr and never stored in the clear.
func RunFirstRunSetup(ctx context.Context, users storage.UserStorage, bcryptCost int, sugar *zap.SugaredLogger) (*FirstRunResult, error) {
	result := &FirstRunResult{}

	existing, err := users.ListUsers(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to check for existing users: %w", err)
	}
	if len(existing) > 0 {
		return result, nil
	}
	result.IsFirstRun = true

	sugar.Info("========================================")
	sugar.Info("FIRST RUN DETECTED - Running initial setup")
	sugar.Info("========================================")

	adminEmail := os.Getenv("ARGUS_ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@argus.local"
	}
	adminPassword, err := GenerateSecurePassword(24)
	if err != nil {
		return result, fmt.Errorf("failed to generate admin password: %w", err)
	}

	hash, err := storage.HashPassword(adminPassword, bcryptCost)
	if err != nil {
		return result, fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &storage.User{
		Name:         "Administrator",
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         storage.RoleAdmin,
		CreatedAt:    time.Now(),
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		return result, fmt.Errorf("failed to create admin user: %w", err)
	}

	result.AdminCreated = true
	result.AdminEmail = adminEmail
	result.AdminPassword = adminPassword

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "     DEFAULT ADMIN CREDENTIALS\n")
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "  Email:    %s\n", adminEmail)
	fmt.Fprintf(os.Stderr, "  Password: %s\n", adminPassword)
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "  IMPORTANT: This password will NOT be\n")
	fmt.Fprintf(os.Stderr, "  shown again! Store it securely now.\n")
	fmt.Fprintf(os.Stderr, "========================================\n\n")

	sugar.Info("First-run setup completed")
	return result, nil
}
