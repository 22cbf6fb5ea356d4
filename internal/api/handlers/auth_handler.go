package handlers

import (
	"net/http"
	"time"

	"github.com/toolshed/marketplace/internal/application/services"
)

// AuthHandler opens and closes cookie sessions
type AuthHandler struct {
	auth         *services.AuthService
	cookieName   string
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, cookieName string, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	expires := h.auth.ExpiresAt()
	http.SetCookie(w, h.cookie(token, expires))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user":       user,
		"token":      token,
		"expires_at": expires,
	})
}

// Logout handles DELETE /api/session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie := h.cookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
