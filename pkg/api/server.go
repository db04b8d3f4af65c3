// Package api serves the hub's HTTP surface: the repository API, the
// Git-LFS transfer endpoints and the resolve read path.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/api/handlers"
)

// Server is the hub HTTP server. It supports graceful shutdown with a
// bounded timeout.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates the hub HTTP server. The server is created in a
// stopped state; call Start to begin serving.
func NewServer(config Config, deps handlers.Deps) *Server {
	config.ApplyDefaults()
	if deps.BaseURL == "" {
		deps.BaseURL = config.PublicBaseURL
	}

	h := handlers.New(deps)
	router := NewRouter(h, deps)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start serves requests until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("hub server listening", "port", s.config.Port, "base_url", s.config.PublicBaseURL)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("hub server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("hub server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("hub server shutdown error: %w", err)
			logger.Error("hub server shutdown error", "error", err)
		} else {
			logger.Info("hub server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.config.Port
}
