package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID. Operator tools may set it; the
// webhook sender never does, so push deliveries get a generated ID.
const RequestIDHeader = "x-request-id"

// maxRequestIDLength bounds caller-supplied IDs that end up in log lines.
const maxRequestIDLength = 64

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestIDMiddleware tags each request with an ID that error and panic
// logs include. Caller IDs are kept when they are short printable ASCII.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// WithRequestID stores a request ID on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID, or "" outside the middleware.
func GetRequestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	if requestID, ok := r.Context().Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
