package osutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context derived from parent that is cancelled on the first
// Ctrl+C or SIGTERM. A second signal exits the process immediately, browsers that are
// stuck on a page do not always shut down promptly.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
			signal.Stop(sigs)
			return
		}
		slog.Warn("interrupted, shutting down browsers (interrupt again to force)")
		cancel()
		<-sigs
		os.Exit(130)
	}()

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}
