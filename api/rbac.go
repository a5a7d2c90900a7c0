package api

import (
	"net/http"

	"argus/metrics"
	"argus/storage"
)

// RequiredRole is the minimum role a route demands.
type RequiredRole int

const (
	// RequireNone marks a public route.
	RequireNone RequiredRole = iota
	// RequireAnalyst admits analysts and admins.
	RequireAnalyst
	// RequireAdmin admits admins only.
	RequireAdmin
)

type authzDecision int

const (
	authzAllow authzDecision = iota
	authzUnauthenticated
	authzForbidden
)

// authorize is the pure authorization decision: given the verified identity
// (nil when unauthenticated) and the route's requirement, decide allow,
// 401, or 403. It never consults the request.
func authorize(id *Identity, required RequiredRole) authzDecision {
	if required == RequireNone {
		return authzAllow
	}
	if id == nil {
		return authzUnauthenticated
	}
	switch required {
	case RequireAnalyst:
		if id.Role == storage.RoleAnalyst || id.Role == storage.RoleAdmin {
			return authzAllow
		}
	case RequireAdmin:
		if id.Role == storage.RoleAdmin {
			return authzAllow
		}
	}
	return authzForbidden
}

// protected wraps a handler with the authoritative session and role checks.
// This runs regardless of what the edge gate decided: the gate only filters
// requests with no token at all, it never vouches for token validity.
func (a *API) protected(required RequiredRole, handler http.HandlerFunc) http.HandlerFunc {
	return a.guarded(required, handler, true)
}

// protectedNoRefresh is protected without the sliding cookie refresh, for
// routes that end the session. A refreshed cookie on a logout response would
// outlive the revocation of the token the client presented.
func (a *API) protectedNoRefresh(required RequiredRole, handler http.HandlerFunc) http.HandlerFunc {
	return a.guarded(required, handler, false)
}

func (a *API) guarded(required RequiredRole, handler http.HandlerFunc, refresh bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := a.verifySessionWithRefresh(w, r, refresh)
		switch authorize(id, required) {
		case authzUnauthenticated:
			metrics.AuthzDenialsTotal.WithLabelValues("unauthenticated").Inc()
			a.logger.Infow("Request rejected: no valid session",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", getRealIP(r, a.config.Server.TrustProxy))
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		case authzForbidden:
			metrics.AuthzDenialsTotal.WithLabelValues("forbidden").Inc()
			a.logger.Warnw("Request rejected: insufficient role",
				"path", r.URL.Path,
				"method", r.Method,
				"user", id.Email,
				"role", id.Role,
				"ip", getRealIP(r, a.config.Server.TrustProxy))
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		handler(w, r.WithContext(withIdentity(r.Context(), id)))
	}
}
