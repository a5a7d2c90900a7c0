package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/config"
	"argus/storage"
	"argus/upstream"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests-0123456789"
	testAPIKey    = "test-upstream-api-key"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.JWTExpiry = 24 * time.Hour
	cfg.Auth.BcryptCost = 4
	cfg.Auth.CookieName = "argus_session"
	cfg.Upstream.APIKey = testAPIKey
	cfg.Upstream.Timeout = 5 * time.Second
	cfg.RateLimit.Login.Limit = 100
	cfg.RateLimit.Login.Window = time.Minute
	cfg.RateLimit.Login.Burst = 100
	cfg.Security.JSONBodyLimit = 1 << 20
	cfg.Security.LoginBodyLimit = 10 << 10
	cfg.Security.MaxUploadSize = 50 << 20
	cfg.Web.LoginPath = "/login"
	cfg.Web.StaticDir = "web/static"
	return cfg
}

// newTestAPI builds an API over the mock user store and a forwarder pointed
// at upstreamURL.
func newTestAPI(t *testing.T, upstreamURL string) (*API, *storage.MockUserStorage) {
	t.Helper()
	cfg := testConfig()
	cfg.Upstream.BaseURL = upstreamURL

	logger := zap.NewNop().Sugar()
	users := storage.NewMockUserStorage()
	forwarder := upstream.NewForwarder(upstreamURL, testAPIKey, cfg.Upstream.Timeout, logger)

	a, err := NewAPI(users, forwarder, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { close(a.stopCh) })
	return a, users
}

// seedUser creates a user directly in the mock store and returns it.
func seedUser(t *testing.T, users *storage.MockUserStorage, email, password string, role storage.Role) *storage.User {
	t.Helper()
	hash, err := storage.HashPassword(password, 4)
	require.NoError(t, err)
	user := &storage.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, users.CreateUser(context.Background(), user))
	return user
}

// sessionToken mints a valid token for the user, as login would.
func sessionToken(t *testing.T, a *API, user *storage.User) string {
	t.Helper()
	token, err := a.generateToken(user)
	require.NoError(t, err)
	return token
}

// addSession attaches the session cookie to a request.
func addSession(r *http.Request, cookieName, token string) {
	r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
}
