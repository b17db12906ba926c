package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	locaimcp "github.com/locaidev/locai/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  remember   — store a memory
  recall     — search memories with blended ranking
  forget     — delete a memory by ID
  relate     — create a typed relationship between two nodes
  neighbors  — walk the graph around a node
  history    — list the version chain of a memory
  stats      — store statistics

If the graph store is unavailable at startup the server still starts;
individual tool calls will return MCP error responses on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, engErr := newEngine(ctx, logger)
			if engErr != nil {
				// Log to stderr and continue with a nil engine.
				// Tool calls will return per-call errors rather than crashing.
				logger.Error("mcp: failed to initialize engine; tool calls will fail",
					"error", engErr)
			} else {
				defer func() { _ = eng.Close(ctx) }()
			}

			srv := locaimcp.NewServer(eng, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: locai MCP server starting", "transport", "stdio")

			if serveErr := mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			); serveErr != nil {
				return fmt.Errorf("mcp: %w", serveErr)
			}
			return nil
		},
	}

	return cmd
}
