package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MockUserStorage implements UserStorage in memory for handler tests.
type MockUserStorage struct {
	mu    sync.Mutex
	users map[string]*User // keyed by email
}

func NewMockUserStorage() *MockUserStorage {
	return &MockUserStorage{
		users: make(map[string]*User),
	}
}

func (m *MockUserStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *MockUserStorage) CreateUser(ctx context.Context, user *User) error {
	if err := ValidateNewUser(user); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

func (m *MockUserStorage) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := m.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (m *MockUserStorage) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		users = append(users, &cp)
	}
	return users, nil
}

// Count reports the number of stored records, for test assertions.
func (m *MockUserStorage) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}
