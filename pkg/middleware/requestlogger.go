package middleware

import (
	"log/slog"
	"net/http"

	"github.com/nainu25/ELEMENT-01/pkg/logger"
)

// SessionIDHeader identifies the storefront cart session.
const SessionIDHeader = "X-Session-ID"

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// session_id, trace_id and span_id and stores it in the request context.
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if logger.SessionIDFromContext(ctx) == "" {
				if sessionID := r.Header.Get(SessionIDHeader); sessionID != "" {
					ctx = logger.WithSessionID(ctx, sessionID)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
