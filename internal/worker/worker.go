// Package worker drives the scripts of a directory against one target,
// forever or for a bounded number of passes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/interpreter"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/script"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/store"
)

// Runner executes one parsed script.
type Runner interface {
	Execute(ctx context.Context, sc *model.Script) (*interpreter.Result, error)
}

// Scripts yields script paths. See script.Iterator.
type Scripts interface {
	Next() (string, error)
}

// Options configures a Worker.
type Options struct {
	Target string

	// StatusScript names the fleet-status script. Its captures are
	// appended to Store under StatusTable. A bare file name matches that
	// name in any directory.
	StatusScript string
	StatusTable  string
	Store        *store.Store

	// RescanDelay is the pause after an empty scan or a failed session.
	RescanDelay time.Duration

	Logger *slog.Logger
}

// Worker owns one target.
type Worker struct {
	runner  Runner
	opts    Options
	logger  *slog.Logger
	schemas map[string]store.Schema
	sleep   func(ctx context.Context, d time.Duration) error
}

// New returns a Worker executing scripts through runner.
func New(runner Runner, opts Options) *Worker {
	logger := logging.Discard(opts.Logger)
	return &Worker{
		runner:  runner,
		opts:    opts,
		logger:  logger.With("target", opts.Target),
		schemas: make(map[string]store.Schema),
		sleep:   sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes scripts from scripts until ctx ends or scripts returns
// io.EOF. Script-level failures are logged and never stop the loop.
func (w *Worker) Run(ctx context.Context, scripts Scripts) error {
	w.logger.Info("worker started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := scripts.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			w.logger.Info("worker finished")
			return nil
		case errors.Is(err, script.ErrNoScripts):
			w.logger.Debug("no scripts, rescanning", "delay", w.opts.RescanDelay)
			if err := w.sleep(ctx, w.opts.RescanDelay); err != nil {
				return err
			}
			continue
		default:
			w.logger.Error("scanning scripts", "error", err)
			if err := w.sleep(ctx, w.opts.RescanDelay); err != nil {
				return err
			}
			continue
		}

		if _, err := w.RunOnce(ctx, path); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("script failed", "script", path, "error", err)
			if errors.Is(err, errSession) {
				if err := w.sleep(ctx, w.opts.RescanDelay); err != nil {
					return err
				}
			}
		}
	}
}

var errSession = errors.New("session not established")

// RunOnce loads and executes the script at path, storing its captures
// when it is the status script.
func (w *Worker) RunOnce(ctx context.Context, path string) (*interpreter.Result, error) {
	sc, err := script.Load(path)
	if err != nil {
		return nil, err
	}

	var schema store.Schema
	status := w.isStatus(path)
	if status {
		if schema, err = w.schema(ctx, sc); err != nil {
			return nil, err
		}
	}

	res, err := w.runner.Execute(ctx, sc)
	if err != nil {
		if ctx.Err() == nil && res == nil {
			err = fmt.Errorf("%w: %w", errSession, err)
		}
		return res, err
	}
	if status {
		if err := w.opts.Store.Append(ctx, schema, res.Capture); err != nil {
			return res, fmt.Errorf("storing status: %w", err)
		}
		w.logger.Info("status stored", "run", res.RunID, "columns", len(res.Capture.Values))
	}
	return res, nil
}

func (w *Worker) isStatus(path string) bool {
	if w.opts.StatusScript == "" || w.opts.Store == nil {
		return false
	}
	want := filepath.Clean(w.opts.StatusScript)
	if filepath.Base(want) == want {
		return filepath.Base(path) == want
	}
	return filepath.Clean(path) == want
}

// schema returns the store schema of the status script at sc.Path,
// initializing the table on first use.
func (w *Worker) schema(ctx context.Context, sc *model.Script) (store.Schema, error) {
	if s, ok := w.schemas[sc.Path]; ok {
		return s, nil
	}
	s, err := store.SchemaFor(w.opts.StatusTable, sc)
	if err != nil {
		return store.Schema{}, err
	}
	if err := w.opts.Store.InitSchema(ctx, s); err != nil {
		return store.Schema{}, err
	}
	w.schemas[sc.Path] = s
	w.logger.Info("status schema ready", "table", s.Table, "columns", s.Columns)
	return s, nil
}
