package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/toolshed/marketplace/internal/domain/entities"
)

type contextKey int

const currentUserKey contextKey = iota

// Authenticator resolves a session token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*entities.User, error)
}

// SessionMiddleware attaches the signed-in user, if any, to the request
// context. Invalid sessions are treated as anonymous.
func SessionMiddleware(auth Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r, cookieName)
			if token != "" {
				if user, err := auth.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(WithUser(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionToken(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// WithUser returns ctx carrying user
func WithUser(ctx context.Context, user *entities.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the signed-in user of the request context
func CurrentUser(ctx context.Context) (*entities.User, bool) {
	user, ok := ctx.Value(currentUserKey).(*entities.User)
	return user, ok && user != nil
}

// RequireUser rejects anonymous requests with 401
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next(w, r)
	}
}
