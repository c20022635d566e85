package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/interpreter"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform/platformtest"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/script"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/store"
)

const statusDoc = `<script app_path="Root">
  <action><type>get</type><name>Label1</name><title>build</title><delay>0.1</delay></action>
</script>`

func write(t *testing.T, dir, name, doc string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newInterpreter(d *platformtest.Driver) *interpreter.Interpreter {
	return interpreter.New(func(ep string) (*platform.Provider, error) {
		return &platform.Provider{Driver: d, Endpoint: ep, Remote: true}, nil
	}, interpreter.Options{Target: "10.0.0.5", Endpoint: "http://10.0.0.5:4723"})
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestRun_StatusScriptStoresRow(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "status_query.xml", statusDoc)

	d := &platformtest.Driver{}
	label := platformtest.NewElement("Label1", "Static")
	d.Add(label)

	st := store.Open(filepath.Join(t.TempDir(), "vmstatus.db"), nil)
	w := New(newInterpreter(d), Options{
		Target:       "10.0.0.5",
		StatusScript: "status_query.xml",
		StatusTable:  "vmstatus",
		Store:        st,
	})
	w.sleep = noSleep

	if err := w.Run(context.Background(), script.Bounded(dir, ".xml", 1)); err != nil {
		t.Fatal(err)
	}
	row, err := st.Latest(context.Background(), "vmstatus", "10.0.0.5")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("expected one stored row")
	}
	if row.Values["ip"] != "10.0.0.5" || row.Values["build"] != "Label1" {
		t.Errorf("row = %+v", row.Values)
	}
	if n, _ := st.Count(context.Background(), "vmstatus", "10.0.0.5"); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestRun_TwoPassesAppendTwoRows(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "status_query.xml", statusDoc)
	write(t, dir, "other.xml", `<s app_path="Root"><action><type>delay</type><delay>0</delay></action></s>`)

	d := &platformtest.Driver{}
	d.Add(platformtest.NewElement("Label1", "Static"))
	st := store.Open(filepath.Join(t.TempDir(), "vmstatus.db"), nil)
	w := New(newInterpreter(d), Options{
		Target: "10.0.0.5", StatusScript: "status_query.xml", StatusTable: "vmstatus", Store: st,
	})
	w.sleep = noSleep

	if err := w.Run(context.Background(), script.Bounded(dir, ".xml", 2)); err != nil {
		t.Fatal(err)
	}
	if n, _ := st.Count(context.Background(), "vmstatus", "10.0.0.5"); n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	if len(w.schemas) != 1 {
		t.Errorf("schema initialized %d times", len(w.schemas))
	}
}

// recordingRunner fails for scripts whose app_path is "down".
type recordingRunner struct {
	ran []string
}

func (r *recordingRunner) Execute(ctx context.Context, sc *model.Script) (*interpreter.Result, error) {
	r.ran = append(r.ran, filepath.Base(sc.Path))
	if sc.Metadata.AppPath == "down" {
		return nil, errors.New("connection refused")
	}
	return &interpreter.Result{Capture: model.NewCaptureRecord("t")}, nil
}

func TestRun_FailuresDoNotStopLoop(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.xml", `<s app_path="down"/>`)
	write(t, dir, "b.xml", `<s><action><type>click</type></action></s>`)
	write(t, dir, "c.xml", `<s app_path="ok"/>`)

	runner := &recordingRunner{}
	w := New(runner, Options{Target: "10.0.0.5"})
	var sleeps int
	w.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}
	if err := w.Run(context.Background(), script.Bounded(dir, ".xml", 1)); err != nil {
		t.Fatal(err)
	}
	if len(runner.ran) != 2 || runner.ran[0] != "a.xml" || runner.ran[1] != "c.xml" {
		t.Errorf("ran %v, want [a.xml c.xml] (b.xml is malformed)", runner.ran)
	}
	if sleeps != 1 {
		t.Errorf("sleeps = %d, want 1 after the failed session", sleeps)
	}
}

func TestRun_EmptyDirRescans(t *testing.T) {
	w := New(&recordingRunner{}, Options{Target: "10.0.0.5", RescanDelay: time.Second})
	var slept []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	if err := w.Run(context.Background(), script.Bounded(t.TempDir(), ".xml", 3)); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 3 {
		t.Errorf("slept %v, want three rescan delays", slept)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := New(&recordingRunner{}, Options{Target: "10.0.0.5"})
	if err := w.Run(ctx, script.NewIterator(t.TempDir(), ".xml")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIsStatus(t *testing.T) {
	st := store.Open("unused.db", nil)
	tests := []struct {
		status string
		path   string
		want   bool
	}{
		{"status_query.xml", "/scripts/status_query.xml", true},
		{"status_query.xml", "/scripts/sub/status_query.xml", true},
		{"status_query.xml", "/scripts/other.xml", false},
		{"/scripts/status_query.xml", "/scripts/status_query.xml", true},
		{"/scripts/status_query.xml", "/elsewhere/status_query.xml", false},
		{"", "/scripts/status_query.xml", false},
	}
	for _, tt := range tests {
		w := New(nil, Options{StatusScript: tt.status, Store: st})
		if got := w.isStatus(tt.path); got != tt.want {
			t.Errorf("isStatus(%q) with %q = %v, want %v", tt.path, tt.status, got, tt.want)
		}
	}
}
