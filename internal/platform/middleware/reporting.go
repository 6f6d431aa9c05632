package middleware

import (
	"log/slog"
	"net/http"

	"canvass/pkg/platform/secrets"
)

// RequireReportingKey guards read-only reporting endpoints (network tree,
// anonymous-submission summary) with a shared key presented in the
// X-Reporting-Key header and verified against a bcrypt hash from config.
// When no hash is configured the endpoints are closed, not open.
func RequireReportingKey(keyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if keyHash == "" {
				logger.WarnContext(ctx, "reporting endpoint hit with no reporting key configured",
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Reporting is not enabled")
				return
			}

			key := r.Header.Get("X-Reporting-Key")
			if key == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing reporting key")
				return
			}
			if err := secrets.Verify(key, keyHash); err != nil {
				logger.WarnContext(ctx, "reporting key rejected",
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Invalid reporting key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
