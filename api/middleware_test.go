package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/storage"
)

func TestEdgeGateRedirectsBrowserWithoutSession(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestDashboardPageRedirectsDeadSession(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	// A forged cookie gets past the edge gate; the page handler still sends
	// the browser to the login page rather than answering 401 JSON.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "text/html")
	addSession(r, a.config.Auth.CookieName, "forged")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestEdgeGateReturns401ForAPIClientWithoutSession(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "authentication required", body["error"])
}

func TestEdgeGateAdmitsPublicPaths(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	for _, path := range []string{"/healthz", "/metrics"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code, "public path %s must not require a session", path)
	}
}

// A garbage cookie satisfies the edge gate's presence check but must still be
// rejected by the handler-level verification. The gate is a filter, not the
// authority.
func TestForgedCookiePassesEdgeGateButFailsVerification(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	addSession(r, a.config.Auth.CookieName, "not-a-real-token")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	// Not a redirect: the request got past the gate and into the handler,
	// which answered with the authoritative 401.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "authentication required", body["error"])
}

func TestExpiredSessionTreatedAsMissing(t *testing.T) {
	a, users := newTestAPI(t, "http://127.0.0.1:0")
	user := seedUser(t, users, "analyst@example.com", "pw-long-enough", storage.RoleAnalyst)

	a.config.Auth.JWTExpiry = -time.Minute
	expired := sessionToken(t, a, user)
	a.config.Auth.JWTExpiry = 24 * time.Hour

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	addSession(r, a.config.Auth.CookieName, expired)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")
	a.config.RateLimit.Login.Limit = 2
	a.config.RateLimit.Login.Window = time.Minute
	a.config.RateLimit.Login.Burst = 2

	body := `{"email":"someone@example.com","password":"wrong"}`
	var last int
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		r.RemoteAddr = "203.0.113.7:55112"
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, r)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	r := httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDAssigned(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGetRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.9:4242"
	r.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.1")

	assert.Equal(t, "198.51.100.9", getRealIP(r, false), "proxy headers ignored when proxy is untrusted")
	assert.Equal(t, "203.0.113.50", getRealIP(r, true))
}
