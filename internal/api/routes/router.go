package routes

import (
	"net/http"

	"github.com/toolshed/marketplace/internal/api/handlers"
	"github.com/toolshed/marketplace/internal/api/middleware"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
)

// Handlers groups every HTTP handler served by the API
type Handlers struct {
	Auth      *handlers.AuthHandler
	Listings  *handlers.ListingHandler
	Tools     *handlers.ToolHandler
	Lookups   *handlers.LookupHandler
	Messages  *handlers.MessageHandler
	SSE       *handlers.SSEHandler
	WebSocket *handlers.WebSocketHandler
}

// Options configures the middleware chain
type Options struct {
	Authenticator  middleware.Authenticator
	CookieName     string
	AllowedOrigins []string
	Metrics        *observability.Metrics
}

// Router holds all route handlers
type Router struct {
	mux      *http.ServeMux
	handlers Handlers
	options  Options
}

// NewRouter creates a new router
func NewRouter(h Handlers, opts Options) *Router {
	return &Router{
		mux:      http.NewServeMux(),
		handlers: h,
		options:  opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	auth := middleware.RequireUser
	h := r.handlers

	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Session endpoints
	r.mux.HandleFunc("POST /api/session", h.Auth.Login)
	r.mux.HandleFunc("DELETE /api/session", h.Auth.Logout)

	// Listing endpoints
	r.mux.HandleFunc("GET /api/listings/search", h.Listings.Search)
	r.mux.HandleFunc("POST /api/listings", auth(h.Listings.Create))
	r.mux.HandleFunc("PATCH /api/listings/{id}", auth(h.Listings.SetActive))
	r.mux.HandleFunc("DELETE /api/listings/{id}", auth(h.Listings.Delete))

	// Tool endpoints
	r.mux.HandleFunc("POST /api/tools", auth(h.Tools.Create))
	r.mux.HandleFunc("GET /api/tools/{id}", h.Tools.Get)
	r.mux.HandleFunc("DELETE /api/tools/{id}", auth(h.Tools.Delete))
	r.mux.HandleFunc("POST /api/uploads", auth(h.Tools.UploadManual))

	// Lookup endpoints
	r.mux.HandleFunc("GET /api/lookups/{kind}", h.Lookups.Search)
	r.mux.HandleFunc("POST /api/lookups/{kind}", auth(h.Lookups.Create))

	// Message endpoints
	r.mux.HandleFunc("GET /api/messages", auth(h.Messages.Threads))
	r.mux.HandleFunc("GET /api/messages/{userId}", auth(h.Messages.Thread))
	r.mux.HandleFunc("POST /api/messages/{userId}", auth(h.Messages.Send))

	// Live delivery endpoints
	r.mux.HandleFunc("GET /api/stream/messages", auth(h.SSE.StreamMessages))
	r.mux.HandleFunc("GET /ws/messages", auth(h.WebSocket.Serve))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.SessionMiddleware(r.options.Authenticator, r.options.CookieName)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.options.Metrics)(handler)

	// Apply HTTP performance optimizations (compression, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflights never reach the handlers
	handler = middleware.CORSMiddleware(r.options.AllowedOrigins)(handler)

	return handler
}
