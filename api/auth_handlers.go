package api

import (
	"errors"
	"net/http"
	"time"

	"argus/metrics"
	"argus/storage"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1,max=256"`
}

type loginResponse struct {
	Token string       `json:"token"`
	Email string       `json:"email"`
	Name  string       `json:"name"`
	Role  storage.Role `json:"role"`
}

// login godoc
//
//	@Summary	Authenticate and open a session
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		credentials	body		loginRequest	true	"Login credentials"
//	@Success	200			{object}	loginResponse
//	@Failure	401			{object}	map[string]string
//	@Router		/api/auth/login [post]
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req, a.config.Security.LoginBodyLimit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ip := getRealIP(r, a.config.Server.TrustProxy)
	user, err := a.users.ValidateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		a.logger.Infow("Login failed", "email", req.Email, "ip", ip)
		// Unknown account and wrong password produce the same answer.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := a.generateToken(user)
	if err != nil {
		a.logger.Errorw("Failed to generate session token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.setSessionCookie(w, token)
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	a.logger.Infow("Login succeeded", "email", user.Email, "role", user.Role, "ip", ip)

	respondJSON(w, http.StatusOK, loginResponse{
		Token: token,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}

// logout godoc
//
//	@Summary	Close the current session
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Security	SessionCookie
//	@Router		/api/auth/logout [post]
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id != nil && id.JTI != "" {
		a.revokedTokens.Store(id.JTI, time.Now().Add(a.config.Auth.JWTExpiry))
	}
	a.clearSessionCookie(w)
	a.logger.Infow("Logout", "email", id.Email)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type sessionStatusResponse struct {
	Authenticated bool         `json:"authenticated"`
	Email         string       `json:"email"`
	Role          storage.Role `json:"role"`
}

// sessionStatus godoc
//
//	@Summary	Report the current session
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	sessionStatusResponse
//	@Security	SessionCookie
//	@Router		/api/auth/session [get]
func (a *API) sessionStatus(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	respondJSON(w, http.StatusOK, sessionStatusResponse{
		Authenticated: true,
		Email:         id.Email,
		Role:          id.Role,
	})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=256"`
	Role     string `json:"role" validate:"required,oneof=admin analyst"`
}

type registerResponse struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Role  storage.Role `json:"role"`
}

// register godoc
//
//	@Summary	Create a dashboard account (admin only)
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		user	body		registerRequest	true	"New account"
//	@Success	201		{object}	registerResponse
//	@Failure	409		{object}	map[string]string
//	@Security	SessionCookie
//	@Router		/api/auth/register [post]
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req, a.config.Security.JSONBodyLimit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid registration request")
		return
	}

	hash, err := storage.HashPassword(req.Password, a.config.Auth.BcryptCost)
	if err != nil {
		a.logger.Errorw("Failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &storage.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         storage.Role(req.Role),
	}
	if err := a.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		a.logger.Errorw("Failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	admin := IdentityFromContext(r.Context())
	a.logger.Infow("User account created",
		"email", user.Email,
		"role", user.Role,
		"created_by", admin.Email)

	respondJSON(w, http.StatusCreated, registerResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
}
