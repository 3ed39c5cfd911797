package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/backend"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Backend backend.Backend
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}

	err := auth.CheckPassword(r.Context(), h.Backend, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoPassword):
		slog.Warn("login failed", "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		slog.Error("checking password", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.issueToken(w, r)
	slog.Info("owner logged in", "remote", r.RemoteAddr)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil || claims.ExpiresAt == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := auth.RevokeToken(r.Context(), h.Backend, claims.ID, claims.ExpiresAt.Time); err != nil {
		slog.Error("revoking token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	slog.Info("owner logged out")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password. Changing the password
// rotates the token secret, so the response carries a fresh token.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}

	if err := auth.CheckPassword(r.Context(), h.Backend, req.CurrentPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			jsonError(w, http.StatusUnauthorized, "current password is incorrect")
			return
		}
		slog.Error("checking password", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := auth.SetPassword(r.Context(), h.Backend, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"fields": map[string]string{"newPassword": err.Error()},
			})
			return
		}
		slog.Error("setting password", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	slog.Info("owner changed password")
	h.issueToken(w, r)
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	secret, err := auth.EnsureSecret(r.Context(), h.Backend)
	if err != nil {
		slog.Error("loading token secret", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := auth.GenerateToken(secret)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}
