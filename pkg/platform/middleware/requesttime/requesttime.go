// Package requesttime pins a single "now" per request. Every store write and
// audit entry within one request shares the same timestamp, and stale-pending
// reclaim decisions become reproducible.
package requesttime

import (
	"net/http"
	"time"

	"taxbridge/pkg/requestcontext"
)

// Middleware captures the wall clock at the start of the request and stores
// it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
