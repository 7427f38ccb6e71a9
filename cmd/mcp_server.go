/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing the diff history engine",
	Long: `Start a Model Context Protocol (MCP) server so AI tools like Claude Code,
Cursor, and other coding assistants can inspect and manage the pending file
edits tracked by the diff history engine.

The server runs over stdin/stdout and provides tools for:
- Listing pending file changes (diff-status)
- Accepting pending changes (diff-accept)
- Rejecting pending changes (diff-reject)
- Reverting to the state before a user turn (diff-revert)

Example usage with Claude Code:
  taskwing mcp

The server will run until the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServer(ctx context.Context) error {
	impl := &mcp.Implementation{
		Name:    "taskwing",
		Version: version,
	}
	server := mcp.NewServer(impl, nil)

	if err := RegisterDiffHistoryTools(server); err != nil {
		return fmt.Errorf("failed to register diff history tools: %w", err)
	}

	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
