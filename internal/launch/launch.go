// Package launch is the child-process collaborator spec.md §1
// deliberately keeps external to the core: it starts (or attaches to)
// the real language server and hands back the plain io.Reader/
// io.WriteCloser pair internal/proxy.Streams expects, so the
// forwarding pipeline never knows which transport is underneath.
//
// Grounded on the original Rust's src/main.rs invocation shapes (the
// "docker exec -i --workdir ... cat"-adjacent process launch, and the
// local-exec fallback) and on the teacher's three LanguageClient
// constructors (lsp/tcp_client.go, lsp/websocket_client.go,
// lsp/session_client.go), generalized here into one Process type with
// three ways to obtain its streams.
package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"rockerboo/lspdock/internal/logger"
)

// Process is a running (or attached) language server, exposing the
// byte streams internal/proxy needs and a way to shut it down (Close).
type Process struct {
	In    io.WriteCloser
	Out   io.ReadCloser
	close func() error
}

// Close releases the process's resources (closing pipes and/or
// killing the subprocess, depending on how it was launched).
func (p *Process) Close() error {
	if p.close != nil {
		return p.close()
	}
	return nil
}

// DockerExec starts executable inside containerID via "docker exec -i
// --workdir <containerWorkspacePath> <containerID> <executable>
// <args...>", matching the original's default launch shape.
func DockerExec(ctx context.Context, containerID, containerWorkspacePath, executable string, args []string) (*Process, error) {
	dockerArgs := append([]string{"exec", "-i", "--workdir", containerWorkspacePath, containerID, executable}, args...)
	cmd := exec.CommandContext(ctx, "docker", dockerArgs...)
	return startCmd(cmd)
}

// LocalExec starts executable directly on the host, the fallback path
// when Config.UseDocker is false.
func LocalExec(ctx context.Context, executable string, args []string) (*Process, error) {
	cmd := exec.CommandContext(ctx, executable, args...)
	return startCmd(cmd)
}

func startCmd(cmd *exec.Cmd) (*Process, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("launch: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("launch: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch: start %s: %w", cmd.Path, err)
	}
	logger.Info("launch: started child process", "path", cmd.Path, "pid", cmd.Process.Pid)

	return &Process{
		In:  stdin,
		Out: stdout,
		close: func() error {
			_ = stdin.Close()
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			return cmd.Wait()
		},
	}, nil
}
