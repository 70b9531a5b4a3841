// Package middleware holds the HTTP middleware chain for the gateway:
// request ids, client metadata, and optional bearer auth.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"regbridge/pkg/requestcontext"
)

// RequestID assigns each request a uuid (or adopts the caller's X-Request-ID)
// and stores it in the context for handlers, services, and audit events.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
