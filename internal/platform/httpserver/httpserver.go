package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the timeouts both saga services share. The
// write timeout stays generous because registration calls out to the
// identity provider before answering.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
