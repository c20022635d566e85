package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/config"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/interpreter"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/store"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/supervisor"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/transfer"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/worker"
)

// fleet binds the configuration to the core components. It is the
// backend of the serve and status commands.
type fleet struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (f *fleet) readTargets() ([]string, error) {
	file, err := os.Open(f.cfg.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}
	defer file.Close()
	targets, err := model.ReadTargets(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.cfg.TargetsFile, err)
	}
	return targets, nil
}

func (f *fleet) dial(endpoint string) (*platform.Provider, error) {
	return platform.NewProvider(endpoint, platform.Options{
		ExecApp:  f.cfg.Exec.App,
		ExecArgs: f.cfg.Exec.Args,
		Logger:   f.logger,
	})
}

func (f *fleet) transferConfig() transfer.Config {
	t := f.cfg.Transfer
	return transfer.Config{
		Port:            t.Port,
		IdleTimeout:     t.IdleTimeout,
		AcceptTimeout:   t.AcceptTimeout,
		DialAttempts:    t.DialAttempts,
		DialBackoff:     t.DialBackoff,
		UploadCommand:   t.UploadCommand,
		DownloadCommand: t.DownloadCommand,
	}
}

func (f *fleet) interpreter(target string, logger *slog.Logger) *interpreter.Interpreter {
	return interpreter.New(f.dial, interpreter.Options{
		Target:        target,
		Endpoint:      f.cfg.Endpoint(target),
		LaunchSettle:  f.cfg.LaunchSettle,
		ClickFallback: platform.By(f.cfg.ClickFallback),
		Transfer:      f.transferConfig(),
		Logger:        logger,
	})
}

func (f *fleet) store() *store.Store {
	return store.Open(f.cfg.Status.Database, f.logger)
}

func (f *fleet) worker(target string) *worker.Worker {
	logger := logging.Discard(f.logger).With("target", target)
	return worker.New(f.interpreter(target, logger), worker.Options{
		Target:       target,
		StatusScript: f.cfg.Status.Script,
		StatusTable:  f.cfg.Status.Table,
		Store:        f.store(),
		RescanDelay:  f.cfg.RescanDelay,
		Logger:       f.logger,
	})
}

// Targets returns the configured targets with the worker pids recorded
// by the supervisor, probed for liveness.
func (f *fleet) Targets(ctx context.Context) ([]model.Target, error) {
	addrs, err := f.readTargets()
	if err != nil {
		return nil, err
	}
	pids := make(map[string]int)
	if recorded, err := supervisor.ReadPIDFile(f.cfg.PIDFile); err == nil {
		for _, t := range recorded {
			pids[t.Address] = t.PID
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	out := make([]model.Target, 0, len(addrs))
	for _, a := range addrs {
		t := model.Target{Address: a, PID: pids[a]}
		t.Alive = supervisor.Alive(t.PID)
		out = append(out, t)
	}
	return out, nil
}

// Status returns the latest status row of target.
func (f *fleet) Status(ctx context.Context, target string) (*store.Row, error) {
	return f.store().Latest(ctx, f.cfg.Status.Table, target)
}

// RunScript runs the script at path once against target, storing its
// captures when it is the status script.
func (f *fleet) RunScript(ctx context.Context, target, path string) (*interpreter.Result, error) {
	return f.worker(target).RunOnce(ctx, path)
}
