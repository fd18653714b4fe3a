// Package request provides request-id middleware. Every request gets a
// correlation id, either propagated from the caller or freshly generated.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"taxbridge/pkg/requestcontext"
)

// HeaderRequestID is the header the id is read from and echoed back on.
const HeaderRequestID = "X-Request-ID"

// Middleware ensures every request carries a correlation id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the correlation id from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
