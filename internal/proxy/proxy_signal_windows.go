//go:build windows

package proxy

import (
	"context"
	"os"
	"os/signal"
)

// waitForShutdownSignal blocks until the process receives os.Interrupt
// (Ctrl-C), or returns ctx.Err() if the context is cancelled first.
// Windows has no SIGTERM/SIGHUP equivalent reachable via os/signal.
func waitForShutdownSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return &shutdownSignalError{sig: sig.String()}
	case <-ctx.Done():
		return ctx.Err()
	}
}
