package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalystCapabilitiesAreStrictSubsetOfAdmin pins the role hierarchy: every
// analyst capability must be granted to admin, and admin must hold at least one
// capability analysts lack.
func TestAnalystCapabilitiesAreStrictSubsetOfAdmin(t *testing.T) {
	caps := RoleCapabilities()

	adminSet := make(map[Capability]struct{}, len(caps[RoleAdmin]))
	for _, c := range caps[RoleAdmin] {
		adminSet[c] = struct{}{}
	}

	for _, c := range caps[RoleAnalyst] {
		_, ok := adminSet[c]
		assert.True(t, ok, "admin is missing analyst capability %s", c)
	}
	assert.Greater(t, len(caps[RoleAdmin]), len(caps[RoleAnalyst]),
		"admin capability set must be strictly larger")
}

func TestRoleHasCapability(t *testing.T) {
	assert.True(t, RoleAnalyst.HasCapability(CapReadAlerts))
	assert.True(t, RoleAnalyst.HasCapability(CapUpdateAlertStatus))
	assert.False(t, RoleAnalyst.HasCapability(CapManageUsers))
	assert.False(t, RoleAnalyst.HasCapability(CapRunDetection))
	assert.False(t, RoleAnalyst.HasCapability(CapUploadData))

	assert.True(t, RoleAdmin.HasCapability(CapManageUsers))
	assert.True(t, RoleAdmin.HasCapability(CapRunDetection))
	assert.True(t, RoleAdmin.HasCapability(CapReadAlerts))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleAnalyst.Valid())
	assert.False(t, Role("viewer").Valid())
	assert.False(t, Role("").Valid())
}

func TestValidateNewUser(t *testing.T) {
	valid := &User{
		Name:         "Jo Analyst",
		Email:        "jo@example.com",
		PasswordHash: "$2a$10$fakehash",
		Role:         RoleAnalyst,
	}
	assert.NoError(t, ValidateNewUser(valid))

	tests := []struct {
		name   string
		mutate func(u *User)
	}{
		{"missing email", func(u *User) { u.Email = "" }},
		{"missing name", func(u *User) { u.Name = "" }},
		{"missing hash", func(u *User) { u.PasswordHash = "" }},
		{"bad role", func(u *User) { u.Role = "superuser" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := *valid
			tt.mutate(&u)
			assert.Error(t, ValidateNewUser(&u))
		})
	}
}

func TestMockUserStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockUserStorage()

	hash, err := HashPassword("hunter2hunter2", 10)
	require.NoError(t, err)
	require.NotEqual(t, "hunter2hunter2", hash, "hash must not equal plaintext")

	user := &User{
		Name:         "Jo Analyst",
		Email:        "jo@example.com",
		PasswordHash: hash,
		Role:         RoleAnalyst,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUserByEmail(ctx, "jo@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleAnalyst, got.Role)
	assert.NotEqual(t, "hunter2hunter2", got.PasswordHash)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMockUserStorage_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := NewMockUserStorage()

	hash, err := HashPassword("hunter2hunter2", 10)
	require.NoError(t, err)

	first := &User{Name: "Jo", Email: "jo@example.com", PasswordHash: hash, Role: RoleAnalyst}
	require.NoError(t, store.CreateUser(ctx, first))

	second := &User{Name: "Jo Again", Email: "jo@example.com", PasswordHash: hash, Role: RoleAdmin}
	err = store.CreateUser(ctx, second)
	require.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, 1, store.Count(), "exactly one record must exist after a duplicate attempt")
}

func TestMockUserStorage_ValidateCredentials(t *testing.T) {
	ctx := context.Background()
	store := NewMockUserStorage()

	hash, err := HashPassword("correct-horse-battery", 10)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, &User{
		Name: "Jo", Email: "jo@example.com", PasswordHash: hash, Role: RoleAnalyst,
	}))

	user, err := store.ValidateCredentials(ctx, "jo@example.com", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", user.Email)

	_, err = store.ValidateCredentials(ctx, "jo@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email must be indistinguishable from a wrong password.
	_, err = store.ValidateCredentials(ctx, "nobody@example.com", "whatever12345")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
