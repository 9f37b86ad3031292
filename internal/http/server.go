// README: HTTP server wrapper; serves a handler until the context is cancelled, then drains.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"commute/internal/logging"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logging.OrDefault(logger),
	}
}

// Run blocks until ctx is done or the listener fails. In-flight requests get
// shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
