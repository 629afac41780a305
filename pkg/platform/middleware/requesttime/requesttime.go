// Package requesttime pins one "now" per request so every timestamp a request
// writes (report rows, events, notifications) agrees.
package requesttime

import (
	"net/http"
	"time"

	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// Clock supplies the instant a request is stamped with.
type Clock func() time.Time

// Middleware stamps each request with the wall clock in UTC.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps each request from clock. Read it back with requestcontext.Now.
func WithClock(clock Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
