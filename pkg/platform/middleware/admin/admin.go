// Package admin guards the operator routes with a shared secret header.
package admin

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/requestcontext"
)

// HeaderAdminToken carries the shared operator secret.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken rejects requests whose header does not match expectedToken.
// Both sides are hashed before comparing so the check runs in constant time
// regardless of token length. An empty expectedToken locks the routes.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(expectedToken))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAdminToken)
			if reason := rejectReason(expectedToken, got, want); reason != "" {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin request rejected",
					"reason", reason,
					"path", r.URL.Path,
					"client_ip", requestcontext.ClientIP(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
					Error:            "unauthorized",
					ErrorDescription: "admin token required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectReason(expected, got string, want [sha256.Size]byte) string {
	switch {
	case expected == "":
		return "admin token not configured"
	case got == "":
		return "missing token"
	}
	have := sha256.Sum256([]byte(got))
	if subtle.ConstantTimeCompare(have[:], want[:]) != 1 {
		return "token mismatch"
	}
	return ""
}
