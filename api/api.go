// Package api Argus dashboard BFF
//
//	@title			Argus Dashboard API
//	@version		1.0
//	@description	Backend-for-frontend for the Argus security-operations dashboard
//
// @host		localhost:8080
// @BasePath	/
// @securityDefinitions.apikey	SessionCookie
// @in							cookie
// @name						argus_session
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"argus/config"
	"argus/storage"
	"argus/upstream"
)

// maxLoginLimiters bounds the per-IP login limiter table; the LRU evicts the
// least recently seen IPs instead of growing without bound.
const maxLoginLimiters = 4096

// API holds the BFF HTTP server and its collaborators.
type API struct {
	router    *mux.Router
	server    *http.Server
	config    *config.Config
	logger    *zap.SugaredLogger
	users     storage.UserStorage
	forwarder *upstream.Forwarder
	validate  *validator.Validate

	// revokedTokens maps JTI -> token expiry for logged-out sessions.
	revokedTokens sync.Map
	loginLimiters *lru.Cache[string, *rate.Limiter]
	stopCh        chan struct{}

	// health probe for the credential store; nil in handler tests.
	mongoPing func(ctx context.Context) error
}

// NewAPI creates the BFF API server.
func NewAPI(users storage.UserStorage, forwarder *upstream.Forwarder, cfg *config.Config, logger *zap.SugaredLogger) (*API, error) {
	limiters, err := lru.New[string, *rate.Limiter](maxLoginLimiters)
	if err != nil {
		return nil, fmt.Errorf("failed to create login limiter cache: %w", err)
	}

	a := &API{
		router:        mux.NewRouter(),
		config:        cfg,
		logger:        logger,
		users:         users,
		forwarder:     forwarder,
		validate:      validator.New(),
		loginLimiters: limiters,
		stopCh:        make(chan struct{}),
	}
	a.setupRoutes()
	go a.cleanupRevokedTokens()
	return a, nil
}

// SetMongoPing wires the credential store health probe into /healthz.
func (a *API) SetMongoPing(ping func(ctx context.Context) error) {
	a.mongoPing = ping
}

// setupRoutes sets up the BFF routes. Ordering matters: the edge gate runs
// before routing, the authoritative session/role checks run inside each
// handler via protected().
func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.edgeGateMiddleware)

	// Auth surface
	a.router.HandleFunc("/api/auth/login", a.loginRateLimitMiddleware(a.login)).Methods("POST")
	a.router.HandleFunc("/api/auth/logout", a.protectedNoRefresh(RequireAnalyst, a.logout)).Methods("POST")
	a.router.HandleFunc("/api/auth/session", a.protected(RequireAnalyst, a.sessionStatus)).Methods("GET")
	a.router.HandleFunc("/api/auth/register", a.protected(RequireAdmin, a.register)).Methods("POST")

	// Alerts
	a.router.HandleFunc("/api/alerts", a.protected(RequireAnalyst, a.getAlerts)).Methods("GET")
	a.router.HandleFunc("/api/alerts", a.protected(RequireAnalyst, a.updateAlertStatus)).Methods("PUT")
	a.router.HandleFunc("/api/alerts", a.protected(RequireAdmin, a.runDetection)).Methods("POST")

	// Entity risk scores
	a.router.HandleFunc("/api/entities", a.protected(RequireAnalyst, a.getEntityScores)).Methods("GET")
	a.router.HandleFunc("/api/entities", a.protected(RequireAdmin, a.recalculateRisk)).Methods("POST")

	// Logs
	a.router.HandleFunc("/api/logs/upload", a.protected(RequireAdmin, a.uploadLogs)).Methods("POST")
	a.router.HandleFunc("/api/logs/{type}", a.protected(RequireAnalyst, a.getLogs)).Methods("GET")

	// Threat intelligence
	a.router.HandleFunc("/api/threat-intel", a.protected(RequireAnalyst, a.getThreatIntel)).Methods("GET")
	a.router.HandleFunc("/api/threat-intel", a.protected(RequireAdmin, a.createThreatIntel)).Methods("POST")
	a.router.HandleFunc("/api/threat-intel", a.protected(RequireAdmin, a.deleteThreatIntel)).Methods("DELETE")

	// Public surface
	a.router.HandleFunc("/healthz", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
	a.router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	a.router.HandleFunc(a.config.Web.LoginPath, a.loginPage).Methods("GET")
	a.router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(a.config.Web.StaticDir))))
	a.router.HandleFunc("/", a.dashboardPage).Methods("GET")
}

// Handler exposes the configured router, mainly for tests.
func (a *API) Handler() http.Handler {
	return a.router
}

// Start starts the API server.
func (a *API) Start(port string) error {
	a.server = &http.Server{
		Addr:              port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return a.server.ListenAndServe()
}

// StartTLS starts the API server with TLS.
func (a *API) StartTLS(port, certFile, keyFile string) error {
	a.server = &http.Server{
		Addr:              port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return a.server.ListenAndServeTLS(certFile, keyFile)
}

// Stop stops the API server.
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}
