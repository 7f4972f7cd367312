// Package httpx provides the HTTP surface of the catalog admin: auth state, login,
// logout, the auth event stream and the guarded product catalog.
package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth    AuthStore
	Catalog ProductLister
	Health  []HealthCheck
	Logger  *slog.Logger // optional
}

// NewRouter creates the HTTP handler with logging and panic recovery applied.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	health := healthHandler(services.Health...)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	authHandlers := &AuthHandlers{Store: services.Auth, Logger: logger}
	registerAuthRoutes(mux, authHandlers)

	guard := RequireSession(services.Auth)
	mux.Handle("GET /{$}", guard(http.HandlerFunc(authHandlers.Home)))
	if services.Catalog != nil {
		products := &ProductHandlers{Svc: services.Catalog, Logger: logger}
		mux.Handle("GET /api/products", guard(http.HandlerFunc(products.List)))
	}

	return Recover(logger)(Logging(logger)(mux))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("GET /api/auth/state", h.State)
	mux.HandleFunc("GET /api/auth/events", h.Events)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
}
