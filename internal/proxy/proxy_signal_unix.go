//go:build !windows

package proxy

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// waitForShutdownSignal blocks until the process receives SIGINT,
// SIGTERM, or SIGHUP, until ctx is done, or returns ctx.Err() if the
// context is cancelled first -- whichever happens first wins and the
// other is simply never observed (spec.md §4.G).
func waitForShutdownSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return &shutdownSignalError{sig: sig.String()}
	case <-ctx.Done():
		return ctx.Err()
	}
}
