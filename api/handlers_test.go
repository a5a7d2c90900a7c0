package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/storage"
)

// countingUpstream stands in for the analytics API and records every request
// that reaches it.
type countingUpstream struct {
	calls    atomic.Int64
	lastPath string
	lastKey  string
	handler  http.HandlerFunc
}

func newCountingUpstream(t *testing.T, handler http.HandlerFunc) (*countingUpstream, *httptest.Server) {
	t.Helper()
	cu := &countingUpstream{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cu.calls.Add(1)
		cu.lastPath = r.URL.Path
		cu.lastKey = r.URL.Query().Get("api_key")
		if cu.handler != nil {
			cu.handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return cu, srv
}

func TestGetAlertsForwardsToUpstream(t *testing.T) {
	cu, srv := newCountingUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"alerts":[{"id":"a1"}]}`))
	})
	a, users := newTestAPI(t, srv.URL)
	analyst := seedUser(t, users, "analyst@example.com", "a-strong-passphrase", storage.RoleAnalyst)
	token := sessionToken(t, a, analyst)

	r := httptest.NewRequest(http.MethodGet, "/api/alerts?status=open", nil)
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"alerts":[{"id":"a1"}]}`, w.Body.String())
	assert.Equal(t, int64(1), cu.calls.Load())
	assert.Equal(t, "/api/detection/alerts", cu.lastPath)
	assert.Equal(t, testAPIKey, cu.lastKey, "the server-held API key must be injected")
}

func TestUnauthenticatedRequestNeverReachesUpstream(t *testing.T) {
	cu, srv := newCountingUpstream(t, nil)
	a, _ := newTestAPI(t, srv.URL)

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	addSession(r, a.config.Auth.CookieName, "garbage-token")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(0), cu.calls.Load(), "denied requests must cause no upstream traffic")
}

func TestForbiddenRequestNeverReachesUpstream(t *testing.T) {
	cu, srv := newCountingUpstream(t, nil)
	a, users := newTestAPI(t, srv.URL)
	analyst := seedUser(t, users, "analyst@example.com", "a-strong-passphrase", storage.RoleAnalyst)
	token := sessionToken(t, a, analyst)

	// POST /api/alerts (detection run) is admin-only.
	r := httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "insufficient permissions", body["error"])
	assert.Equal(t, int64(0), cu.calls.Load())
}

func TestGetLogsMapsTypeToUpstreamPath(t *testing.T) {
	cu, srv := newCountingUpstream(t, nil)
	a, users := newTestAPI(t, srv.URL)
	analyst := seedUser(t, users, "analyst@example.com", "a-strong-passphrase", storage.RoleAnalyst)
	token := sessionToken(t, a, analyst)

	paths := map[string]string{
		"network":      "/api/ingestion/network",
		"auth":         "/api/ingestion/auth",
		"assets":       "/api/ingestion/assets",
		"threat_intel": "/api/ingestion/threat_intel",
	}
	for logType, wantPath := range paths {
		r := httptest.NewRequest(http.MethodGet, "/api/logs/"+logType, nil)
		addSession(r, a.config.Auth.CookieName, token)
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code, logType)
		assert.Equal(t, wantPath, cu.lastPath, logType)
	}
}

func TestGetLogsUnknownTypeRejectedBeforeUpstream(t *testing.T) {
	cu, srv := newCountingUpstream(t, nil)
	a, users := newTestAPI(t, srv.URL)
	analyst := seedUser(t, users, "analyst@example.com", "a-strong-passphrase", storage.RoleAnalyst)
	token := sessionToken(t, a, analyst)

	r := httptest.NewRequest(http.MethodGet, "/api/logs/syslog", nil)
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "unknown log type")
	assert.Equal(t, int64(0), cu.calls.Load())
}

func TestRecalculateRiskTranslatesEntityType(t *testing.T) {
	cu, srv := newCountingUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "IP", r.URL.Query().Get("entity_type"))
		_, _ = w.Write([]byte(`{"recalculated":12}`))
	})
	a, users := newTestAPI(t, srv.URL)
	admin := seedUser(t, users, "admin@example.com", "a-strong-passphrase", storage.RoleAdmin)
	token := sessionToken(t, a, admin)

	r := httptest.NewRequest(http.MethodPost, "/api/entities", strings.NewReader(`{"entityType":"IP"}`))
	r.Header.Set("Content-Type", "application/json")
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"recalculated":12}`, w.Body.String())
	assert.Equal(t, "/api/risk/calculate", cu.lastPath)
	assert.Equal(t, testAPIKey, cu.lastKey)
	assert.Equal(t, int64(1), cu.calls.Load())
}

func TestUpdateAlertStatusValidatesFields(t *testing.T) {
	cu, srv := newCountingUpstream(t, nil)
	a, users := newTestAPI(t, srv.URL)
	analyst := seedUser(t, users, "analyst@example.com", "a-strong-passphrase", storage.RoleAnalyst)
	token := sessionToken(t, a, analyst)

	for _, body := range []string{`{}`, `{"alertId":"a1"}`, `{"status":"closed"}`} {
		r := httptest.NewRequest(http.MethodPut, "/api/alerts", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		addSession(r, a.config.Auth.CookieName, token)
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, int64(0), cu.calls.Load())

	r := httptest.NewRequest(http.MethodPut, "/api/alerts", strings.NewReader(`{"alertId":"a1","status":"closed"}`))
	r.Header.Set("Content-Type", "application/json")
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/detection/alerts", cu.lastPath)
}

func TestUpstreamErrorStatusRelayedVerbatim(t *testing.T) {
	_, srv := newCountingUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"detection engine busy"}`))
	})
	a, users := newTestAPI(t, srv.URL)
	analyst := seedUser(t, users, "analyst@example.com", "a-strong-passphrase", storage.RoleAnalyst)
	token := sessionToken(t, a, analyst)

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"detection engine busy"}`, w.Body.String())
}

func TestUnreachableUpstreamNormalizedTo500(t *testing.T) {
	a, users := newTestAPI(t, "http://127.0.0.1:1")
	analyst := seedUser(t, users, "analyst@example.com", "a-strong-passphrase", storage.RoleAnalyst)
	token := sessionToken(t, a, analyst)

	r := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	assert.NotContains(t, body["error"], testAPIKey, "the API key must never leak to clients")
}

func TestUploadLogsStreamsMultipart(t *testing.T) {
	cu, srv := newCountingUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "network", r.FormValue("type"))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "src,dst\n1.2.3.4,5.6.7.8\n", string(data))
		_, _ = w.Write([]byte(`{"records_processed":1}`))
	})
	a, users := newTestAPI(t, srv.URL)
	admin := seedUser(t, users, "admin@example.com", "a-strong-passphrase", storage.RoleAdmin)
	token := sessionToken(t, a, admin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("type", "network"))
	part, err := mw.CreateFormFile("file", "flows.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("src,dst\n1.2.3.4,5.6.7.8\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/logs/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"records_processed":1}`, w.Body.String())
	assert.Equal(t, "/api/ingestion/upload", cu.lastPath)
}

func TestUploadLogsRejectsOversizeBody(t *testing.T) {
	cu, srv := newCountingUpstream(t, nil)
	a, users := newTestAPI(t, srv.URL)
	a.config.Security.MaxUploadSize = 64
	admin := seedUser(t, users, "admin@example.com", "a-strong-passphrase", storage.RoleAdmin)
	token := sessionToken(t, a, admin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "flows.csv")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 1024))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/logs/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"upload exceeds size limit"}`, w.Body.String())
	assert.Equal(t, int64(0), cu.calls.Load(), "oversize uploads are rejected before any upstream call")
}

func TestDeleteThreatIntelRequiresIndicator(t *testing.T) {
	cu, srv := newCountingUpstream(t, nil)
	a, users := newTestAPI(t, srv.URL)
	admin := seedUser(t, users, "admin@example.com", "a-strong-passphrase", storage.RoleAdmin)
	token := sessionToken(t, a, admin)

	r := httptest.NewRequest(http.MethodDelete, "/api/threat-intel", nil)
	addSession(r, a.config.Auth.CookieName, token)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), cu.calls.Load())

	r = httptest.NewRequest(http.MethodDelete, "/api/threat-intel?indicator=1.2.3.4", nil)
	addSession(r, a.config.Auth.CookieName, token)
	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/threat-intel", cu.lastPath)
}

func TestHealthCheckReportsMongoState(t *testing.T) {
	a, _ := newTestAPI(t, "http://127.0.0.1:0")

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	a.SetMongoPing(func(ctx context.Context) error { return errors.New("no reachable servers") })
	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}
