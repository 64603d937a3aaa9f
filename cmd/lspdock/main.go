// lspdock: a transparent bidirectional LSP proxy. Launches the real
// language server inside a docker container (or locally, as a
// fallback) and forwards framed JSON-RPC messages between it and the
// editor, rewriting host/container paths and intercepting the process
// id along the way.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"rockerboo/lspdock/internal/binder"
	"rockerboo/lspdock/internal/config"
	"rockerboo/lspdock/internal/launch"
	"rockerboo/lspdock/internal/logger"
	"rockerboo/lspdock/internal/proxy"
	"rockerboo/lspdock/internal/stats"
	"rockerboo/lspdock/internal/tracker"
)

func main() {
	if err := run(); err != nil {
		logger.Error("lspdock: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, childArgs, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("lspdock: %w", err)
	}
	logger.Configure(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc, err := startChild(ctx, cfg, childArgs)
	if err != nil {
		return fmt.Errorf("lspdock: %w", err)
	}
	defer proc.Close()

	st := stats.New()
	go func() {
		if err := stats.Publish(ctx, st, stats.DefaultSnapshotPath, time.Second); err != nil {
			logger.Warn("lspdock: stats publisher stopped", "error", err)
		}
	}()

	trk := tracker.New(tracker.Config{UseDocker: cfg.UseDocker})
	trk.Register(binder.New(binder.Config{
		UseDocker:         cfg.UseDocker,
		ContainerID:       cfg.ContainerID,
		HostWorkspacePath: cfg.HostWorkspacePath,
	}, st))

	proxyCfg := proxy.Config{
		ContainerID:            cfg.ContainerID,
		HostWorkspacePath:      cfg.HostWorkspacePath,
		ContainerWorkspacePath: cfg.ContainerWorkspacePath,
		Executable:             cfg.Executable,
		PatchPIDBinaries:       cfg.PatchPIDBinariesSet(),
		UseDocker:              cfg.UseDocker,
		EncodedLocalPath:       cfg.EncodedLocalPath,
	}

	return proxy.Run(ctx, proxyCfg, trk, st, proxy.Streams{
		EditorIn:  os.Stdin,
		EditorOut: os.Stdout,
		ServerIn:  proc.In,
		ServerOut: proc.Out,
	})
}

func startChild(ctx context.Context, cfg *config.Config, childArgs []string) (*launch.Process, error) {
	if cfg.UseDocker {
		return launch.DockerExec(ctx, cfg.ContainerID, cfg.ContainerWorkspacePath, cfg.Executable, childArgs)
	}
	return launch.LocalExec(ctx, cfg.Executable, childArgs)
}
