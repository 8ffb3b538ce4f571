package apiserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nordiqpay/qcert-pki/internal/config"
)

// Server wraps the REST API's http.Server with the teacher's graceful
// shutdown idiom, narrowed to the single listen address spec.md names
// (no multi-port split — there is one REST surface here, not three).
type Server struct {
	cfg        *config.Config
	handler    http.Handler
	httpServer *http.Server
}

// NewServer builds a Server that will listen on cfg.ListenAddr.
func NewServer(cfg *config.Config, handler http.Handler) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		httpServer: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: handler,
		},
	}
}

// Start listens and blocks until either the server fails or a termination
// signal arrives, in which case it shuts down gracefully and returns.
func (s *Server) Start() error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down", sig)
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server, bounded by cfg.ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("server stopped gracefully")
	return nil
}
