// Package httpserver wraps http.Server with the timeouts this service
// runs with everywhere, including the graceful shutdown window, so
// main only starts and stops it.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// DefaultShutdownTimeout bounds graceful shutdown when the caller's
// context carries no deadline of its own.
const DefaultShutdownTimeout = 10 * time.Second

// Server is an http.Server with a built-in shutdown window.
type Server struct {
	*http.Server
	shutdownTimeout time.Duration
}

// New builds an HTTP server with sane defaults for this project.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// Shutdown drains in-flight requests. A context without a deadline is
// bounded by DefaultShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.Server.Shutdown(ctx)
}
