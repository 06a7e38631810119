package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/registry/application"
	"github.com/zjrosen/registrar/internal/tracing"
)

// Server wraps the Handler with an http.Server for lifecycle management.
type Server struct {
	handler  *Handler
	server   *http.Server
	listener net.Listener
	addr     string
	port     int // Actual port after binding (useful when using :0)
}

// ServerConfig configures the API server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., ":8480").
	Addr string
	// Service is the registry service to expose via HTTP.
	Service *application.Service
	// TracerProvider instruments requests when set.
	TracerProvider *tracing.Provider
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// NewServer creates a new API server.
// If Addr uses port 0 (e.g., "localhost:0"), the OS assigns an available
// port; use Port() after construction to get the actual one.
func NewServer(cfg ServerConfig) (*Server, error) {
	handler := NewHandler(cfg.Service)

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}

	// WriteTimeout stays zero by default so SSE streams are not cut off.
	writeTimeout := cfg.WriteTimeout

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	port := 0
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	var routes http.Handler = handler.Routes()
	if cfg.TracerProvider != nil {
		routes = tracing.HTTPMiddleware(cfg.TracerProvider.Tracer())(routes)
	}

	return &Server{
		handler:  handler,
		addr:     cfg.Addr,
		port:     port,
		listener: listener,
		server: &http.Server{
			Handler:           routes,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
	}, nil
}

// Start starts the HTTP server. It blocks until the server is stopped or fails.
func (s *Server) Start() error {
	log.Info(log.CatAPI, "starting API server", "addr", s.listener.Addr().String(), "port", s.port)
	return s.server.Serve(s.listener)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info(log.CatAPI, "stopping API server")
	return s.server.Shutdown(ctx)
}

// Port returns the actual port the server is listening on.
func (s *Server) Port() int {
	return s.port
}
