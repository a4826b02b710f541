package orchestrator

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// SignalHandler funnels SIGINT and SIGTERM into an orderly stop. The
// orchestrator cancels its supervision context; the API binary drains its
// HTTP server within a bound.
type SignalHandler struct {
	signals chan os.Signal
}

// NewSignalHandler registers for interrupt and terminate signals.
func NewSignalHandler() *SignalHandler {
	sh := &SignalHandler{signals: make(chan os.Signal, 1)}
	signal.Notify(sh.signals, syscall.SIGINT, syscall.SIGTERM)
	return sh
}

// HandleSignals cancels ctx once a shutdown signal arrives.
func (sh *SignalHandler) HandleSignals(ctx context.Context, cancel context.CancelFunc) {
	go func() {
		select {
		case sig := <-sh.signals:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
}

// DrainOnSignal blocks until a shutdown signal arrives, then drains the
// server's in-flight requests, abandoning stragglers after the timeout.
func (sh *SignalHandler) DrainOnSignal(server *http.Server, timeout time.Duration) {
	sig := <-sh.signals
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
