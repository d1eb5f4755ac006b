// Package requesttime pins one "now" per request. Issuance dates, expiry
// checks and verification age limits inside a request all read it, so a
// credential issued and verified in the same call never straddles a second.
package requesttime

import (
	"context"
	"net/http"
	"time"
)

type key struct{}

// Clock is the source of request times.
type Clock func() time.Time

// Middleware stamps each request with clock(), in UTC. A nil clock uses
// time.Now.
func Middleware(clock Clock) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithTime(r.Context(), clock().UTC())))
		})
	}
}

// Now returns the pinned time, or time.Now outside a request.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(key{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins t for everything downstream of ctx. Batches use it so every
// item shares the batch start time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, key{}, t)
}
