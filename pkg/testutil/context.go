package testutil

import (
	"net/http"
	"time"

	"verihire/pkg/requestcontext"
)

// WithRequestID attaches a request id, mirroring the request-id middleware.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request clock so handler tests get deterministic timestamps.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
