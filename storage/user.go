package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role is the closed set of principals the platform knows about. There is no
// dynamic role creation: ADMIN has full access, ANALYST reads plus limited
// updates. Everything else in the system consumes this type, never raw strings.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
)

// Valid reports whether r is one of the two defined roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAnalyst
}

// Capability represents a specific capability in the system
type Capability string

const (
	CapReadAlerts        Capability = "read:alerts"
	CapReadEntities      Capability = "read:entities"
	CapReadLogs          Capability = "read:logs"
	CapReadThreatIntel   Capability = "read:threat_intel"
	CapUpdateAlertStatus Capability = "update:alert_status"
	CapUploadData        Capability = "upload:data"
	CapRunDetection      Capability = "run:detection"
	CapRunRiskScoring    Capability = "run:risk_scoring"
	CapWriteThreatIntel  Capability = "write:threat_intel"
	CapManageUsers       Capability = "manage:users"
)

// RoleCapabilities returns the static role -> capability table. It is built on
// demand from constants and never mutated; the analyst set must remain a strict
// subset of the admin set (enforced by tests).
func RoleCapabilities() map[Role][]Capability {
	analyst := []Capability{
		CapReadAlerts,
		CapReadEntities,
		CapReadLogs,
		CapReadThreatIntel,
		CapUpdateAlertStatus,
	}
	admin := append([]Capability{
		CapUploadData,
		CapRunDetection,
		CapRunRiskScoring,
		CapWriteThreatIntel,
		CapManageUsers,
	}, analyst...)

	return map[Role][]Capability{
		RoleAnalyst: analyst,
		RoleAdmin:   admin,
	}
}

// HasCapability checks whether the role grants the given capability.
func (r Role) HasCapability(cap Capability) bool {
	for _, c := range RoleCapabilities()[r] {
		if c == cap {
			return true
		}
	}
	return false
}

// User represents a dashboard user. Email is the natural unique key. The
// password hash never leaves this package in JSON form.
type User struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         Role      `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
}

var (
	// ErrUserNotFound is returned when no user matches the lookup key.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when a creation would violate email uniqueness.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed password check. Callers must
	// not distinguish it from an unknown email in client-facing responses.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStorage is the credential store contract. It is consulted only during
// login and registration, never on the hot path of data requests.
type UserStorage interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	ValidateCredentials(ctx context.Context, email, password string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// ValidateNewUser checks the fields of a user record prior to creation.
func ValidateNewUser(user *User) error {
	if user.Email == "" {
		return fmt.Errorf("email is required")
	}
	if user.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !user.Role.Valid() {
		return fmt.Errorf("invalid role: %q", user.Role)
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("password hash is required")
	}
	return nil
}
