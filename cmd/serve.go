package cmd

import (
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/server"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/version"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing the fleet as tools",
	Long: `Start a Model Context Protocol (MCP) server with three tools:

  targets      list targets with worker pid and liveness
  status       latest status capture of one target
  run_script   execute a script file once against one target

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

Examples:
  vmtest serve
  vmtest serve --transport streamable-http --port 8080
  vmtest serve --cache-ttl 0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "stdio", "Transport: stdio, streamable-http")
	serveCmd.Flags().Int("port", 8080, "HTTP port for streamable-http transport")
	serveCmd.Flags().Int("cache-ttl", 2000, "Status cache TTL in milliseconds (0 to disable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	cacheTTLMs, _ := cmd.Flags().GetInt("cache-ttl")

	scfg := server.Config{
		Transport: transport,
		Port:      port,
		CacheTTL:  time.Duration(cacheTTLMs) * time.Millisecond,
		Version:   version.Version,
	}
	f := &fleet{cfg: cfg, logger: logger}
	return server.New(f, scfg).Serve(scfg)
}
