// lspdock-status: an optional MCP introspection surface over stdio,
// exposing a single lspdock_status tool that reports the running
// proxy's counters (bytes forwarded per direction, files mirrored by
// the library binder). Entirely out-of-band: the core forwarding
// pipeline runs unchanged whether or not this is present.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"rockerboo/lspdock/internal/stats"
)

func main() {
	snapshotPath := flag.String("snapshot-path", stats.DefaultSnapshotPath, "path to the running proxy's stats snapshot file")
	flag.Parse()

	s := server.NewMCPServer("lspdock-status", "0.1.0")

	tool, handler := statusTool(*snapshotPath)
	s.AddTool(tool, handler)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("lspdock-status: %v", err)
	}
}

func statusTool(snapshotPath string) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lspdock_status",
			mcp.WithDescription("Report the running lspdock proxy's forwarding counters: bytes forwarded per direction and files mirrored by the library binder."),
			mcp.WithDestructiveHintAnnotation(false),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			snap, err := stats.ReadSnapshotFile(snapshotPath)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
}
