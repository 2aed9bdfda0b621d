package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/repovec/internal/adapters/driving/mcp"
	"github.com/custodia-labs/repovec/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default, for Claude Desktop)
  repovec mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  repovec mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Ingest:     ingestService,
		Search:     searchService,
		Repository: repositoryService,
		Config:     configStore,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	// Hot-reload the config file while the server runs.
	go func() {
		if err := configStore.Watch(cmd.Context()); err != nil {
			logger.Warn("config watcher stopped: %v", err)
		}
	}()

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
