package httpserver

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Server wraps http.Server with the options the attendance API needs.
type Server struct {
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*http.Server)

// WithTimeouts sets the read and write timeouts. Zero leaves a value unset.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *http.Server) {
		if read > 0 {
			s.ReadTimeout = read
			s.ReadHeaderTimeout = read
		}
		if write > 0 {
			s.WriteTimeout = write
		}
	}
}

// WithTLSConfig serves HTTPS with certificates taken from cfg, typically a
// tlsroots.Reloader.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *http.Server) {
		s.TLSConfig = cfg
	}
}

// New returns a server for handler on addr. ReadHeaderTimeout defaults to
// 10s unless WithTimeouts sets it.
func New(addr string, handler http.Handler, opts ...Option) *Server {
	hs := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(hs)
	}
	return &Server{httpServer: hs}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// TLS reports whether the server was given a TLS config.
func (s *Server) TLS() bool {
	return s.httpServer.TLSConfig != nil
}

// ListenAndServe starts the server, over TLS when WithTLSConfig was used.
func (s *Server) ListenAndServe() error {
	if s.TLS() {
		return s.httpServer.ListenAndServeTLS("", "")
	}
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln, over TLS when WithTLSConfig was used.
func (s *Server) Serve(ln net.Listener) error {
	if s.TLS() {
		return s.httpServer.ServeTLS(ln, "", "")
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server. Hijacked connections (the
// live feed) are not tracked and must be closed by their owner.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
