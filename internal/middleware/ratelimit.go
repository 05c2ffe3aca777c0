package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit allows requests per window for each client IP. onLimit writes
// the rejection; nil keeps httprate's plain 429. A non-positive requests
// disables the limit.
func RateLimit(requests int, window time.Duration, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	opts := []httprate.Option{httprate.WithKeyFuncs(httprate.KeyByIP)}
	if onLimit != nil {
		opts = append(opts, httprate.WithLimitHandler(onLimit))
	}
	return httprate.Limit(requests, window, opts...)
}
