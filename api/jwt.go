package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"argus/storage"
)

const jwtIssuer = "argus"

// Claims are the session token claims. The role claim is informational only;
// authorization always re-reads the role from this verified claim set, never
// from anything the client can edit without invalidating the signature.
type Claims struct {
	UserID string       `json:"user_id"`
	Email  string       `json:"email"`
	Role   storage.Role `json:"role"`
	jwt.RegisteredClaims
}

var (
	errTokenExpired = errors.New("token expired")
	errTokenInvalid = errors.New("token invalid")
)

// generateToken mints a signed HS256 session token for the user.
func (a *API) generateToken(user *storage.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    jwtIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.Auth.JWTExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.Auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// validateToken parses and verifies a session token. Expired tokens and
// malformed tokens are both rejected; the distinction only matters for
// logging, callers treat either as "not authenticated".
func (a *API) validateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.Auth.JWTSecret), nil
	}, jwt.WithIssuer(jwtIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errTokenInvalid
	}
	if !token.Valid {
		return nil, errTokenInvalid
	}
	if !claims.Role.Valid() {
		return nil, errTokenInvalid
	}
	if _, revoked := a.revokedTokens.Load(claims.ID); revoked {
		return nil, errTokenInvalid
	}
	return claims, nil
}

// revokeToken blacklists a token's JTI until its natural expiry.
func (a *API) revokeToken(claims *Claims) {
	exp := time.Now().Add(a.config.Auth.JWTExpiry)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	a.revokedTokens.Store(claims.ID, exp)
}

// cleanupRevokedTokens drops expired JTIs from the blacklist so logout churn
// does not grow the map forever.
func (a *API) cleanupRevokedTokens() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			a.revokedTokens.Range(func(key, value interface{}) bool {
				if exp, ok := value.(time.Time); ok && now.After(exp) {
					a.revokedTokens.Delete(key)
				}
				return true
			})
		}
	}
}
