package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer (SSE flushing).
func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// authLoadingRetryAfter is the Retry-After hint sent while the first pass is in flight.
const authLoadingRetryAfter = 1

// RequireSession guards protected routes on the reconciled auth state.
//   - no session, still loading: 503 auth_loading with Retry-After
//   - no session, settled: 401 JSON for API callers, 303 to /login for browsers
//   - session present: the snapshot is stored in the request context
func RequireSession(store StateReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := store.State()
			if !st.Authenticated() {
				if st.Loading {
					w.Header().Set("Retry-After", strconv.Itoa(authLoadingRetryAfter))
					WriteError(w, ErrorParams{
						Code:    http.StatusServiceUnavailable,
						ErrCode: "auth_loading",
						Err:     errors.New("session is being resolved"),
					})
					return
				}
				if isBrowserRequest(r) {
					redirectToLogin(w, r)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(SetAuthStateInContext(r.Context(), st)))
		})
	}
}

// isBrowserRequest reports whether the caller prefers HTML. /api/ routes are browser
// requests only when they explicitly ask for text/html.
func isBrowserRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return !strings.HasPrefix(r.URL.Path, "/api/")
	}
	return strings.Contains(accept, "text/html")
}

// redirectToLogin sends browsers to /login with the current path as redirect_uri.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	loginURL := "/login"
	if p := safeRedirectPath(r.URL.RequestURI()); p != "" && p != "/" {
		loginURL += "?redirect_uri=" + url.QueryEscape(p)
	}
	http.Redirect(w, r, loginURL, http.StatusSeeOther)
}

// safeRedirectPath returns candidate when it is a local absolute path, otherwise "".
func safeRedirectPath(candidate string) string {
	if candidate == "" || !strings.HasPrefix(candidate, "/") || strings.HasPrefix(candidate, "//") {
		return ""
	}
	if strings.Contains(candidate, "\\") {
		return ""
	}
	return candidate
}

type authStateKey struct{}

// SetAuthStateInContext stores the auth snapshot a guarded handler was admitted with.
func SetAuthStateInContext(ctx context.Context, st domainauth.State) context.Context {
	return context.WithValue(ctx, authStateKey{}, st)
}

// AuthStateFromContext returns the snapshot stored by RequireSession.
func AuthStateFromContext(ctx context.Context) (domainauth.State, bool) {
	st, ok := ctx.Value(authStateKey{}).(domainauth.State)
	return st, ok
}
