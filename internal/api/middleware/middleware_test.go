package middleware_test

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolshed/marketplace/internal/api/middleware"
	"github.com/toolshed/marketplace/internal/domain/entities"
)

type stubAuthenticator struct {
	tokens map[string]*entities.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*entities.User, error) {
	if user, ok := s.tokens[token]; ok {
		return user, nil
	}
	return nil, errors.New("invalid session")
}

func whoAmI(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		io.WriteString(w, "anonymous")
		return
	}
	io.WriteString(w, user.ID)
}

func TestSessionMiddleware(t *testing.T) {
	auth := stubAuthenticator{tokens: map[string]*entities.User{"good": {ID: "user-1"}}}
	handler := middleware.SessionMiddleware(auth, "toolshed_session")(http.HandlerFunc(whoAmI))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "toolshed_session", Value: "good"}) }, "user-1"},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, "user-1"},
		{"invalid token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") }, "anonymous"},
		{"no session", func(r *http.Request) {}, "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRequireUser(t *testing.T) {
	handler := middleware.RequireUser(whoAmI)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), &entities.User{ID: "user-1"}))
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	handler := middleware.CORSMiddleware([]string{"https://toolshed.example"})(http.HandlerFunc(whoAmI))

	req := httptest.NewRequest(http.MethodOptions, "/api/listings", nil)
	req.Header.Set("Origin", "https://toolshed.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://toolshed.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompressionSkipsStreams(t *testing.T) {
	handler := middleware.ResponseOptimization(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/lookups/makers", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "public")
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	req = httptest.NewRequest(http.MethodGet, "/api/stream/messages", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")
}

func TestLoggingMiddlewareKeepsFlusher(t *testing.T) {
	var flushable bool
	handler := middleware.LoggingMiddleware(middleware.ObservabilityMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, flushable)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
