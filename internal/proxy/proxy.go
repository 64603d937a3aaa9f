// Package proxy implements the forwarding supervisor (spec.md §4.G):
// it owns the two forwarding tasks (client->server, server->client),
// a shared cancellation token, the shutdown-signal watcher, and the
// empty-read watchdog, and exposes the single run entry point the
// core exposes to its collaborators.
//
// Grounded on the Rust original's src/proxy/io.rs::forward_proxy and
// main_loop, translated from tokio::select!/CancellationToken into
// context.Context cancellation and goroutines, and on the teacher's
// own concurrency idiom of guarding shared maps with a mutex held only
// across the critical section (see internal/tracker, analogous to the
// teacher's bridge/types.go MCPLSPBridge field locking).
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"rockerboo/lspdock/internal/binder"
	"rockerboo/lspdock/internal/framing"
	"rockerboo/lspdock/internal/logger"
	"rockerboo/lspdock/internal/pidpatch"
	"rockerboo/lspdock/internal/rewriteuri"
	"rockerboo/lspdock/internal/stats"
	"rockerboo/lspdock/internal/tracker"
)

// Pair identifies which direction a forwarding task is running.
type Pair = rewriteuri.Pair

const (
	Client = rewriteuri.Client
	Server = rewriteuri.Server
)

// maxEmptyReads is the empty-read watchdog threshold (spec.md §4.G):
// 15 consecutive empty batches in a direction triggers clean shutdown.
const maxEmptyReads = 15

// Config is the proxy's full, immutable-after-startup configuration
// (spec.md §3 Config). PatchPIDBinaries and Executable gate whether
// the PID interceptor is armed; UseDocker gates URI rewriting and
// request tracking entirely.
type Config struct {
	ContainerID            string
	HostWorkspacePath      string
	ContainerWorkspacePath string
	Executable             string
	PatchPIDBinaries       map[string]struct{}
	UseDocker              bool
	// EncodedLocalPath is the encoded host prefix configured at startup
	// and is never modified by Run. The prefix the client direction
	// detects from its messages at runtime is held separately in an
	// encodedPathCell and, once set, takes precedence over this field
	// (see rewriteConfig).
	EncodedLocalPath string
}

func (c Config) requiresPIDPatch() bool {
	if c.Executable == "" || len(c.PatchPIDBinaries) == 0 {
		return false
	}
	_, ok := c.PatchPIDBinaries[c.Executable]
	return ok
}

func (c Config) rewriteConfig(encodedLocalPath string) rewriteuri.Config {
	if encodedLocalPath == "" {
		encodedLocalPath = c.EncodedLocalPath
	}
	return rewriteuri.Config{
		UseDocker:              c.UseDocker,
		HostWorkspacePath:      c.HostWorkspacePath,
		ContainerWorkspacePath: c.ContainerWorkspacePath,
		EncodedLocalPath:       encodedLocalPath,
	}
}

// encodedPathCell is a one-shot publish cell for the late-bound
// EncodedLocalPath (spec.md §5, §9 Open Question (b)): the client
// direction is the only writer, assigning at most once from its first
// message; the server direction only ever reads either the initial
// empty string or the final, fully-formed value, never a torn write.
type encodedPathCell struct {
	v atomic.Pointer[string]
}

func (c *encodedPathCell) get() string {
	if p := c.v.Load(); p != nil {
		return *p
	}
	return ""
}

// detectAndSet commits the session to the %3A-encoded host path the
// first time a client message contains it; until then it stores
// nothing and later calls check again. Once stored, the value is never
// replaced. Calls are serialized by the client direction processing
// its own messages one at a time, so there is no concurrent writer.
func (c *encodedPathCell) detectAndSet(hostWorkspacePath string, msg []byte) {
	if c.v.Load() != nil || hostWorkspacePath == "" {
		return
	}
	if runtime.GOOS != "windows" {
		return
	}
	encoded := encodeWindowsColon(hostWorkspacePath)
	if encoded == hostWorkspacePath {
		return
	}
	if strings.Contains(string(msg), encoded) {
		c.v.Store(&encoded)
	}
}

// encodeWindowsColon mirrors the URL-encoded colon (%3A) some editors
// send in place of a Windows drive letter's ':'.
func encodeWindowsColon(path string) string {
	return strings.ReplaceAll(path, ":", "%3A")
}

// shutdownSignalError reports which OS signal ended the signal-watcher
// task. It is never returned to Run's caller as a failure: receiving a
// shutdown signal is a clean, expected way for the proxy to end.
type shutdownSignalError struct {
	sig string
}

func (e *shutdownSignalError) Error() string {
	return fmt.Sprintf("proxy: received shutdown signal: %s", e.sig)
}

// Streams bundles the four byte-stream endpoints the core forwards
// between: the proxy's own stdio (talking to the editor) and the
// child language server's stdio (stdin writer, stdout reader).
type Streams struct {
	EditorIn  io.Reader
	EditorOut io.Writer
	ServerIn  io.Writer
	ServerOut io.Reader
}

// Run wires both forwarding directions and a signal watcher around a
// shared cancellation context, and blocks until one of them ends (for
// any reason) -- then cancels the others and returns the first
// non-cancellation error, or nil on a clean shutdown.
func Run(ctx context.Context, cfg Config, trk *tracker.Tracker, st *stats.Stats, streams Streams) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	encodedPath := &encodedPathCell{}

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, 3)

	go func() {
		err := runDirection(ctx, Client, cfg, trk, st, encodedPath, streams.EditorIn, streams.ServerIn)
		results <- outcome{"client->server", err}
	}()
	go func() {
		err := runDirection(ctx, Server, cfg, trk, st, encodedPath, streams.ServerOut, streams.EditorOut)
		results <- outcome{"server->client", err}
	}()
	go func() {
		err := waitForShutdownSignal(ctx)
		results <- outcome{"signal", err}
	}()

	logger.Info("lspdock: listening for messages")

	first := <-results
	logger.Info("forwarding task completed", "task", first.name, "error", first.err)
	cancel()

	// Drain the remaining two so their goroutines don't leak past Run.
	<-results
	<-results

	var sigErr *shutdownSignalError
	if first.err != nil && !errors.Is(first.err, context.Canceled) && !errors.As(first.err, &sigErr) {
		return first.err
	}
	return nil
}

// runDirection is one forwarding task: §4.G's per-worker contract.
// Applying D (if armed, client side only), then C (uri rewrite), then
// E (tracker) in that exact order within a direction, per §5.
func runDirection(ctx context.Context, pair Pair, cfg Config, trk *tracker.Tracker, st *stats.Stats, encodedPath *encodedPathCell, src io.Reader, dst io.Writer) error {
	log := logger.With("pair", pair.String())
	reader := framing.NewReader(src)
	writer := framing.NewWriter(dst)

	var pid *pidpatch.Interceptor
	if pair == Client {
		pid = pidpatch.New()
	}

	emptyRun := 0

	for {
		select {
		case <-ctx.Done():
			log.Info("task cancelled")
			return ctx.Err()
		default:
		}

		msgs, err := reader.ReadMessages()
		if err != nil {
			time.Sleep(10 * time.Millisecond)
			log.Error("read error", "error", err)
			return fmt.Errorf("proxy: %s: %w", pair, err)
		}

		if msgs == nil {
			time.Sleep(30 * time.Millisecond)
			log.Debug("clean end of stream")
			return nil
		}

		if len(msgs) == 0 {
			emptyRun++
			if emptyRun >= maxEmptyReads {
				log.Info("empty-read threshold reached; shutting down")
				return nil
			}
			continue
		}
		emptyRun = 0

		for _, msg := range msgs {
			body := []byte(msg)
			st.AddBytes(pair.String(), len(body))

			if pid != nil && cfg.requiresPIDPatch() {
				patched, applied, err := pid.TryPatch(body)
				if err != nil {
					return fmt.Errorf("proxy: %s: pid patch: %w", pair, err)
				}
				if applied {
					log.Debug("patched processId on initialize", "captured_pid", pid.CapturedPID())
				}
				body = patched
			}

			if cfg.UseDocker {
				if pair == Client {
					encodedPath.detectAndSet(cfg.HostWorkspacePath, body)
				}
				body = rewriteuri.Rewrite(body, pair, cfg.rewriteConfig(encodedPath.get()))

				if pair == Client {
					if err := trk.ObserveClient(body); err != nil {
						return fmt.Errorf("proxy: %s: %w", pair, err)
					}
				} else {
					body, err = trk.ObserveServer(ctx, body)
					if err != nil {
						if errors.Is(err, binder.ErrCopy) {
							log.Error("dropping message: library binding failed", "error", err)
							continue
						}
						return fmt.Errorf("proxy: %s: %w", pair, err)
					}
				}
			}

			if err := writer.WriteMessage(framing.Message(body)); err != nil {
				log.Error("write error", "error", err)
				return fmt.Errorf("proxy: %s: write: %w", pair, err)
			}
		}
	}
}
