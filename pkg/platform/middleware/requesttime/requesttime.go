// Package requesttime pins one "now" per request so every timestamp written
// while serving it (joined_at, converted_at, credit expiry) agrees.
package requesttime

import (
	"net/http"
	"time"

	"lifenavigator/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
