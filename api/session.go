package api

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// extractToken pulls the session token from the request: the session cookie
// first, then an Authorization bearer header for non-browser clients.
func (a *API) extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(a.config.Auth.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// verifySession is the authoritative session check. It returns the verified
// identity, or nil when the request carries no usable session. An expired
// token is treated exactly like a missing one.
func (a *API) verifySession(w http.ResponseWriter, r *http.Request) *Identity {
	return a.verifySessionWithRefresh(w, r, true)
}

// verifySessionWithRefresh is verifySession with the sliding refresh made
// optional. Session-ending routes must skip the refresh: reissuing a token
// on the logout response would hand the client a live JTI the revocation
// list never sees.
func (a *API) verifySessionWithRefresh(w http.ResponseWriter, r *http.Request, refresh bool) *Identity {
	tokenString := a.extractToken(r)
	if tokenString == "" {
		return nil
	}

	claims, err := a.validateToken(tokenString)
	if err != nil {
		a.logger.Debugw("Session token rejected",
			"reason", err.Error(),
			"path", r.URL.Path,
			"ip", getRealIP(r, a.config.Server.TrustProxy))
		return nil
	}

	// Sliding refresh: reissue the cookie once the token has aged past a
	// quarter of its lifetime, so active users never hit the hard expiry.
	if refresh && claims.IssuedAt != nil && time.Since(claims.IssuedAt.Time) > a.config.Auth.JWTExpiry/4 {
		a.refreshSession(r.Context(), w, claims)
	}

	return &Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
		JTI:    claims.ID,
	}
}

func (a *API) refreshSession(ctx context.Context, w http.ResponseWriter, claims *Claims) {
	user, err := a.users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		// The account may have been removed since the token was issued;
		// let the current token ride out its lifetime.
		return
	}
	token, err := a.generateToken(user)
	if err != nil {
		a.logger.Warnw("Failed to refresh session token", "error", err)
		return
	}
	a.setSessionCookie(w, token)
}

// setSessionCookie writes the session cookie with the hardening flags the
// whole auth design depends on.
func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.config.Auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.config.Auth.JWTExpiry.Seconds()),
		HttpOnly: true,
		Secure:   a.config.Server.TLS,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie on the client.
func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.config.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.Server.TLS,
		SameSite: http.SameSiteLaxMode,
	})
}
