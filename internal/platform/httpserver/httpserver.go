package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. WriteTimeout stays unset because /ws holds
// connections open; request handlers are bounded by the timeout middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
