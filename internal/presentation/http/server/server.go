// Package server provides HTTP server initialization and management.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/inkwellhq/inkwell-go/internal/application/container"
	"github.com/inkwellhq/inkwell-go/internal/presentation/http/routes"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// Server wraps the HTTP server with configuration and dependency injection.
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New creates a new HTTP server instance with dependency injection.
func New(port string, container *container.Container) *Server {
	router := routes.SetupRoutes(container)

	httpServer := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: config.ServerReadTimeout,
		// No write deadline: event stream connections outlive any fixed
		// timeout, and their liveness is policed by keep-alive pings.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		container:  container,
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down. Live stream connections are told to close
// first so clients see a close frame instead of a snapped socket.
func (s *Server) Stop(ctx context.Context) error {
	s.container.StreamHandlers.Shutdown()
	return s.httpServer.Shutdown(ctx)
}
