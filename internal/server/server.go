// Package server exposes the fleet over the Model Context Protocol.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/interpreter"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Backend is the fleet the tools operate on.
type Backend interface {
	// Targets returns every configured target with its worker liveness.
	Targets(ctx context.Context) ([]model.Target, error)

	// Status returns the latest status row of target, or nil.
	Status(ctx context.Context, target string) (*store.Row, error)

	// RunScript executes the script at path once against target.
	RunScript(ctx context.Context, target, path string) (*interpreter.Result, error)
}

// Config holds MCP server configuration.
type Config struct {
	Transport string
	Port      int
	CacheTTL  time.Duration
	Version   string
}

// Server wraps the MCP server with the fleet backend and status cache.
type Server struct {
	backend Backend
	cache   *StatusCache
	mcp     *mcpserver.MCPServer

	// runs serializes run_script calls per target.
	runsMu sync.Mutex
	runs   map[string]*sync.Mutex
}

// New creates an MCP server with the vmtest tools registered.
func New(backend Backend, cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		backend: backend,
		cache:   NewStatusCache(cfg.CacheTTL),
		runs:    make(map[string]*sync.Mutex),
	}
	s.mcp = mcpserver.NewMCPServer("vmtest", version)
	s.registerTools()
	return s
}

// Serve starts the MCP server with the configured transport.
func (s *Server) Serve(cfg Config) error {
	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("targets",
			mcp.WithDescription("List the targets under supervision with their worker pid and liveness"),
		),
		s.handleTargets,
	)

	s.mcp.AddTool(
		mcp.NewTool("status",
			mcp.WithDescription("Show the latest fleet-status capture of a target, or of every target when none is given"),
			mcp.WithString("target", mcp.Description("Target address (e.g. '10.0.0.5')")),
		),
		s.handleStatus,
	)

	s.mcp.AddTool(
		mcp.NewTool("run_script",
			mcp.WithDescription("Run one script once against a target and return the per-step report and captures"),
			mcp.WithString("target", mcp.Required(), mcp.Description("Target address")),
			mcp.WithString("script", mcp.Required(), mcp.Description("Path of the script file")),
		),
		s.handleRunScript,
	)
}

func (s *Server) targetLock(target string) *sync.Mutex {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	mu, ok := s.runs[target]
	if !ok {
		mu = &sync.Mutex{}
		s.runs[target] = mu
	}
	return mu
}
