package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/wanderher/wanderher/internal/api/response"
)

// ErrorPage renders a full HTML error page.
type ErrorPage func(w http.ResponseWriter, r *http.Request, status int)

// WantsJSON reports whether r should get a JSON envelope rather than an
// HTML page.
func WantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// Recovery is middleware that recovers from panics. API requests get a 500
// envelope; page requests get the error page.
func Recovery(page ErrorPage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					requestID := GetRequestID(r.Context())
					slog.Error("panic recovered", "error", err, "requestId", requestID, "path", r.URL.Path)
					if page == nil || WantsJSON(r) {
						response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
						return
					}
					page(w, r, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
