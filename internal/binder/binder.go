// Package binder implements the library binder (spec.md §4.F): the
// goto-definition/declaration/typeDefinition response action that
// mirrors container-only files into a host-side temp tree and
// rewrites the response's uri fields to point at the mirror, so the
// editor (which cannot see container paths) can still open the
// result.
//
// Grounded on the Rust original's src/lsp/binding.rs::bind_library,
// which shells out to "docker exec <container> cat <path>" rather than
// mounting or copying via the Docker API -- kept identically here via
// os/exec, per SPEC_FULL.md §2's note on why no Docker SDK is adopted.
package binder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"rockerboo/lspdock/internal/logger"
	"rockerboo/lspdock/internal/pathutil"
	"rockerboo/lspdock/internal/stats"
)

// ErrCopy wraps a failed file copy from the container (or local
// fallback); spec.md §7 treats this as fatal for the current message
// only, not the whole pipeline.
var ErrCopy = fmt.Errorf("binder: copy failed")

// GotoMethods is the set of LSP methods whose responses the binder
// inspects, per spec.md §4.F.
var GotoMethods = []string{
	"textDocument/definition",
	"textDocument/declaration",
	"textDocument/typeDefinition",
}

// Config is the subset of proxy configuration the binder needs.
type Config struct {
	UseDocker         bool
	ContainerID       string
	HostWorkspacePath string
}

// Binder mirrors out-of-workspace goto results into a host temp tree.
// Safe for concurrent use: the mirrored-path set is keyed on the
// temp-file path itself, and existence checks make repeat binds of the
// same path a no-op (spec.md §4.F idempotence).
type Binder struct {
	cfg     Config
	tempDir string // <os temp dir>/lspdock
	stats   *stats.Stats

	mu     sync.Mutex
	copied map[string]struct{}
}

// New returns a Binder rooted at <os temp dir>/lspdock. st may be nil,
// in which case mirror counts are simply not recorded.
func New(cfg Config, st *stats.Stats) *Binder {
	return &Binder{
		cfg:     cfg,
		tempDir: filepath.Join(os.TempDir(), "lspdock"),
		stats:   st,
		copied:  make(map[string]struct{}),
	}
}

// Methods implements tracker.Action.
func (b *Binder) Methods() []string { return GotoMethods }

// Run implements tracker.Action: it walks value["result"] (an array of
// location-like objects with a "uri" field) and, for every uri outside
// the host workspace, binds it to a temp mirror and rewrites the uri
// in place.
func (b *Binder) Run(ctx context.Context, value map[string]any) error {
	resultRaw, ok := value["result"]
	if !ok || resultRaw == nil {
		return nil
	}
	results, ok := resultRaw.([]any)
	if !ok {
		return nil
	}

	for _, item := range results {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uri, ok := obj["uri"].(string)
		if !ok {
			continue
		}
		if strings.Contains(uri, b.cfg.HostWorkspacePath) {
			continue
		}

		newURI, err := b.bind(ctx, uri)
		if err != nil {
			return err
		}
		obj["uri"] = newURI
	}

	return nil
}

// bind copies the file referenced by fileURI into the temp mirror (if
// not already copied) and returns the file:// uri of the mirror.
func (b *Binder) bind(ctx context.Context, fileURI string) (string, error) {
	path := pathutil.TrimFileScheme(fileURI)

	// Loop-avoidance: a uri already inside the mirror is used as-is.
	if strings.HasPrefix(path, b.tempDir) {
		return fileURI, nil
	}

	tempPath := filepath.Join(b.tempDir, strings.TrimPrefix(path, "/"))

	b.mu.Lock()
	_, alreadyCopied := b.copied[tempPath]
	b.mu.Unlock()

	if !alreadyCopied {
		if _, err := os.Stat(tempPath); err == nil {
			alreadyCopied = true
		}
	}

	if !alreadyCopied {
		if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
			return "", fmt.Errorf("%w: create mirror dir: %v", ErrCopy, err)
		}
		if err := b.copyFile(ctx, path, tempPath); err != nil {
			return "", err
		}
		b.mu.Lock()
		b.copied[tempPath] = struct{}{}
		b.mu.Unlock()
		if b.stats != nil {
			b.stats.IncMirroredFiles()
		}
		logger.Info("binder: mirrored external file", "path", path, "mirror", tempPath)
	}

	return "file://" + tempPath, nil
}

// copyFile runs "docker exec <container> cat <path>" (or plain "cat
// <path>" when not running against a container) and writes its stdout
// to dest.
func (b *Binder) copyFile(ctx context.Context, path, dest string) error {
	var cmd *exec.Cmd
	if b.cfg.UseDocker {
		cmd = exec.CommandContext(ctx, "docker", "exec", b.cfg.ContainerID, "cat", path)
	} else {
		cmd = exec.CommandContext(ctx, "cat", path)
	}
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCopy, strings.TrimSpace(stderr.String()), err)
	}

	if err := os.WriteFile(dest, stdout.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: write mirror file: %v", ErrCopy, err)
	}
	return nil
}
