package server

import (
	"context"
	"fmt"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/output"
	"github.com/mark3labs/mcp-go/mcp"
)

// toText serializes v to YAML for an MCP response.
func toText(v interface{}) string {
	s, err := output.String(output.FormatYAML, v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return s
}

func (s *Server) handleTargets(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targets, err := s.backend.Targets(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(toText(targets)), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	target := stringParam(params, "target", "")

	var addrs []string
	if target != "" {
		addrs = []string{target}
	} else {
		targets, err := s.backend.Targets(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, t := range targets {
			addrs = append(addrs, t.Address)
		}
	}

	var out []output.TargetStatus
	for _, addr := range addrs {
		ts := output.TargetStatus{Address: addr}
		row, err := s.cache.Latest(ctx, addr, s.backend.Status)
		switch {
		case err != nil:
			ts.LastError = err.Error()
		case row != nil:
			ts.Values = row.Values
		}
		out = append(out, ts)
	}
	return mcp.NewToolResultText(toText(out)), nil
}

func (s *Server) handleRunScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	target := stringParam(params, "target", "")
	path := stringParam(params, "script", "")
	if target == "" || path == "" {
		return mcp.NewToolResultError("target and script are required"), nil
	}

	mu := s.targetLock(target)
	mu.Lock()
	defer mu.Unlock()

	res, err := s.backend.RunScript(ctx, target, path)
	s.cache.Invalidate(target)
	if err != nil {
		if res != nil {
			return mcp.NewToolResultError(toText(res) + "error: " + err.Error() + "\n"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(toText(res)), nil
}
