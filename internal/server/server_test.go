package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/interpreter"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeBackend struct {
	statusCalls int
	builds      map[string]string
	runErr      error
}

func (f *fakeBackend) Targets(context.Context) ([]model.Target, error) {
	return []model.Target{
		{Address: "10.0.0.5", PID: 42, Alive: true},
		{Address: "10.0.0.6"},
	}, nil
}

func (f *fakeBackend) Status(_ context.Context, target string) (*store.Row, error) {
	f.statusCalls++
	b, ok := f.builds[target]
	if !ok {
		return nil, nil
	}
	return &store.Row{Columns: []string{"ip", "build"}, Values: map[string]string{"ip": target, "build": b}}, nil
}

func (f *fakeBackend) RunScript(_ context.Context, target, path string) (*interpreter.Result, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	rec := model.NewCaptureRecord(target)
	rec.Set("build", "2.0")
	f.builds[target] = "2.0"
	return &interpreter.Result{RunID: "r1", Target: target, Script: path, Capture: rec,
		Steps: []interpreter.StepResult{{Step: 1, Action: `get "Label1"`, OK: true}}}, nil
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleTargets(t *testing.T) {
	s := New(&fakeBackend{builds: map[string]string{}}, Config{})
	res, err := s.handleTargets(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	out := text(t, res)
	if !strings.Contains(out, "10.0.0.5") || !strings.Contains(out, "pid: 42") {
		t.Errorf("targets output:\n%s", out)
	}
}

func TestHandleStatus_Cached(t *testing.T) {
	b := &fakeBackend{builds: map[string]string{"10.0.0.5": "1.0"}}
	s := New(b, Config{CacheTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := s.handleStatus(ctx, call(map[string]interface{}{"target": "10.0.0.5"}))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(text(t, res), "build: \"1.0\"") {
			t.Errorf("status output:\n%s", text(t, res))
		}
	}
	if b.statusCalls != 1 {
		t.Errorf("backend called %d times, want 1", b.statusCalls)
	}
}

func TestHandleStatus_AllTargets(t *testing.T) {
	b := &fakeBackend{builds: map[string]string{"10.0.0.5": "1.0"}}
	s := New(b, Config{})
	res, err := s.handleStatus(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	out := text(t, res)
	if !strings.Contains(out, "10.0.0.5") || !strings.Contains(out, "10.0.0.6") {
		t.Errorf("expected both targets:\n%s", out)
	}
}

func TestHandleRunScript_InvalidatesCache(t *testing.T) {
	b := &fakeBackend{builds: map[string]string{"10.0.0.5": "1.0"}}
	s := New(b, Config{CacheTTL: time.Minute})
	ctx := context.Background()

	s.handleStatus(ctx, call(map[string]interface{}{"target": "10.0.0.5"}))
	res, err := s.handleRunScript(ctx, call(map[string]interface{}{"target": "10.0.0.5", "script": "status_query.xml"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("run_script failed:\n%s", text(t, res))
	}
	if !strings.Contains(text(t, res), "run_id: r1") {
		t.Errorf("run output:\n%s", text(t, res))
	}

	res, _ = s.handleStatus(ctx, call(map[string]interface{}{"target": "10.0.0.5"}))
	if !strings.Contains(text(t, res), "2.0") {
		t.Errorf("stale status after run:\n%s", text(t, res))
	}
}

func TestHandleRunScript_Errors(t *testing.T) {
	b := &fakeBackend{builds: map[string]string{}, runErr: errors.New("connection refused")}
	s := New(b, Config{})
	ctx := context.Background()

	res, _ := s.handleRunScript(ctx, call(map[string]interface{}{"target": "10.0.0.5"}))
	if !res.IsError {
		t.Error("missing script should be an error result")
	}
	res, _ = s.handleRunScript(ctx, call(map[string]interface{}{"target": "10.0.0.5", "script": "a.xml"}))
	if !res.IsError || !strings.Contains(text(t, res), "connection refused") {
		t.Errorf("expected error result, got %+v", res)
	}
}

func TestServe_UnsupportedTransport(t *testing.T) {
	s := New(&fakeBackend{}, Config{})
	if err := s.Serve(Config{Transport: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown transport")
	}
}
