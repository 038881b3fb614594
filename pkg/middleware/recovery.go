package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/nainu25/ELEMENT-01/pkg/httputil"
	"github.com/nainu25/ELEMENT-01/pkg/logger"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR envelope. The
// stack is logged, never sent to the client. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				l.ErrorContext(ctx, "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)

				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "INTERNAL_ERROR",
						Message:   "an internal error occurred",
						RequestID: logger.CorrelationIDFromContext(ctx),
					},
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
