package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

// Server represents an HTTP server
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
	errCh   chan error
}

// New creates a new server instance. The write timeout leaves room for a
// token endpoint request that runs up to its own timeout.
func New(handler http.Handler, port, tlsCert, tlsKey string, requestTimeout time.Duration) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      requestTimeout + 10*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
		errCh:   make(chan error, 1),
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly; later serve errors are delivered on Errors.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	if s.tlsCert != "" && s.tlsKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		go func() {
			if err := s.srv.ServeTLS(ln, s.tlsCert, s.tlsKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.errCh <- err
			}
		}()
		return nil
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
	return nil
}

// Errors delivers a fatal serve error
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
