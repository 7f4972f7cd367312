package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	apperrors "github.com/target/catalog-admin/internal/errors"
)

// StateReader exposes the latest reconciled auth snapshot.
type StateReader interface {
	State() domainauth.State
}

// AuthStore is the subset of service.SessionStore the HTTP layer drives.
type AuthStore interface {
	StateReader
	Watch() (<-chan domainauth.State, func())
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// AuthHandlers provides HTTP handlers for the session store.
type AuthHandlers struct {
	Store  AuthStore
	Logger *slog.Logger
	// KeepAlive is the interval between SSE comment pings. Defaults to 25s.
	KeepAlive time.Duration
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// authStateView is the wire form of domainauth.State. Tokens never leave the process.
type authStateView struct {
	Authenticated bool                 `json:"authenticated"`
	User          *domainauth.Identity `json:"user"`
	Profile       *domainauth.Profile  `json:"profile"`
	Role          domainauth.Role      `json:"role"`
	Loading       bool                 `json:"loading"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
}

func newAuthStateView(st domainauth.State) authStateView {
	v := authStateView{
		Authenticated: st.Authenticated(),
		User:          st.Identity,
		Profile:       st.Profile,
		Role:          st.Role,
		Loading:       st.Loading,
	}
	if st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		exp := st.Session.ExpiresAt
		v.ExpiresAt = &exp
	}
	return v
}

// State handles GET /api/auth/state.
func (h *AuthHandlers) State(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, newAuthStateView(h.Store.State()))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.Store.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, newAuthStateView(h.Store.State()))
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_error", Err: err})
	case apperrors.IsAuth(err):
		reason := apperrors.GetReason(err)
		if reason == "" {
			reason = "auth_failed"
		}
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": reason})
	default:
		h.logger().ErrorContext(r.Context(), "sign in failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error"})
	}
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.SignOut(r.Context()); err != nil {
		if apperrors.IsAuth(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "sign_out_failed", Err: err})
			return
		}
		h.logger().ErrorContext(r.Context(), "sign out failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error"})
		return
	}
	WriteJSON(w, http.StatusOK, newAuthStateView(h.Store.State()))
}

// LoginPage handles GET /login. Signed-in callers are sent on to their
// redirect_uri (or /), everyone else gets a hint describing the login call.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	st := h.Store.State()
	if st.Authenticated() {
		target := safeRedirectPath(r.URL.Query().Get("redirect_uri"))
		if target == "" {
			target = "/"
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"login":   "POST /api/auth/login",
		"fields":  []string{"email", "password"},
		"loading": st.Loading,
	})
}

// Home handles GET / for signed-in callers.
func (h *AuthHandlers) Home(w http.ResponseWriter, r *http.Request) {
	st, ok := AuthStateFromContext(r.Context())
	if !ok {
		st = h.Store.State()
	}
	WriteJSON(w, http.StatusOK, newAuthStateView(st))
}

const defaultKeepAlive = 25 * time.Second

// Events handles GET /api/auth/events as a Server-Sent Events stream. The current
// snapshot is sent first, then every later one. Slow clients skip intermediate
// snapshots but always receive the latest.
func (h *AuthHandlers) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, cancel := h.Store.Watch()
	defer cancel()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := writeStateEvent(w, st); err != nil {
				h.logger().DebugContext(r.Context(), "sse write failed", "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return
		}
	}
}

func writeStateEvent(w http.ResponseWriter, st domainauth.State) error {
	data, err := json.Marshal(newAuthStateView(st))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}
