// Package supervisor keeps one worker process, and optionally one
// viewer process, alive per target.
//
// A process found exited is relaunched on the same pass with no backoff
// and no limit. A failed launch is logged and retried on the next pass.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
)

// Options configures a Supervisor.
type Options struct {
	// Viewers launches the per-target viewer. Nil disables viewers.
	Viewers Launcher

	// PIDFile receives the target→pid mapping after every pass. Empty
	// disables it.
	PIDFile string

	// PollInterval is the pause after each target check.
	PollInterval time.Duration

	// LaunchSpacing is the pause between initial launches.
	LaunchSpacing time.Duration

	// StopOnExit stops every child when Start returns. By default the
	// children outlive the supervisor.
	StopOnExit bool

	Logger *slog.Logger
}

type entry struct {
	target   string
	worker   Process
	viewer   Process
	restarts int
}

// Supervisor owns the fleet.
type Supervisor struct {
	workers Launcher
	opts    Options
	logger  *slog.Logger
	entries []*entry
	sleep   func(ctx context.Context, d time.Duration) error
}

// New returns a Supervisor for targets, launching workers through workers.
func New(targets []string, workers Launcher, opts Options) *Supervisor {
	logger := logging.Discard(opts.Logger)
	s := &Supervisor{workers: workers, opts: opts, logger: logger, sleep: sleep}
	for _, t := range targets {
		s.entries = append(s.entries, &entry{target: t})
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start launches every target's processes, then supervises until ctx
// ends. Children keep running after Start returns unless StopOnExit is
// set.
func (s *Supervisor) Start(ctx context.Context) error {
	s.logger.Info("supervisor started", "targets", len(s.entries))
	if s.opts.StopOnExit {
		defer s.stopAll()
	}
	for i, e := range s.entries {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.LaunchSpacing); err != nil {
				return nil
			}
		}
		s.ensure(ctx, e)
	}
	s.writePIDs()

	for {
		if err := s.Pass(ctx); err != nil {
			s.logger.Info("supervisor stopping", "reason", err)
			return nil
		}
	}
}

// stopAll stops every running child and records them as gone.
func (s *Supervisor) stopAll() {
	for _, e := range s.entries {
		for _, p := range []Process{e.worker, e.viewer} {
			if p == nil {
				continue
			}
			if err := p.Stop(); err != nil {
				s.logger.Error("stopping process", "target", e.target, "pid", p.PID(), "error", err)
			}
		}
	}
	s.writePIDs()
}

// Pass checks every target once, relaunching exited processes, then
// rewrites the pid file. It returns ctx's error if ctx ends mid-pass.
func (s *Supervisor) Pass(ctx context.Context) error {
	for _, e := range s.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.ensure(ctx, e)
		if err := s.sleep(ctx, s.opts.PollInterval); err != nil {
			return err
		}
	}
	s.writePIDs()
	return nil
}

// ensure relaunches e's worker and viewer if they are not running.
func (s *Supervisor) ensure(ctx context.Context, e *entry) {
	if p, ok := s.relaunch(ctx, s.workers, e.target, e.worker, "worker"); ok {
		if e.worker != nil {
			e.restarts++
			s.logger.Info("worker restored", "target", e.target, "pid", p.PID(), "restarts", s.Restarts(e.target))
		}
		e.worker = p
	}
	if s.opts.Viewers != nil {
		if p, ok := s.relaunch(ctx, s.opts.Viewers, e.target, e.viewer, "viewer"); ok {
			e.viewer = p
		}
	}
}

// relaunch starts a process if cur is missing or exited. ok is true
// when a new process was started.
func (s *Supervisor) relaunch(ctx context.Context, l Launcher, target string, cur Process, kind string) (Process, bool) {
	if cur != nil && !cur.Exited() {
		return nil, false
	}
	if cur != nil {
		attrs := []any{"target", target, "pid", cur.PID()}
		if x, ok := cur.(interface{ ExitErr() error }); ok && x.ExitErr() != nil {
			attrs = append(attrs, "error", x.ExitErr())
		}
		s.logger.Warn(kind+" exited, relaunching", attrs...)
	}
	p, err := l.Launch(ctx, target)
	if err != nil {
		s.logger.Error(kind+" launch failed", "target", target, "error", err)
		return nil, false
	}
	s.logger.Info(kind+" launched", "target", target, "pid", p.PID())
	return p, true
}

// Targets returns the current state of every target, in list order.
func (s *Supervisor) Targets() []model.Target {
	out := make([]model.Target, 0, len(s.entries))
	for _, e := range s.entries {
		t := model.Target{Address: e.target}
		if e.worker != nil {
			t.PID = e.worker.PID()
			t.Alive = !e.worker.Exited()
		}
		if e.viewer != nil && !e.viewer.Exited() {
			t.ViewerPID = e.viewer.PID()
		}
		out = append(out, t)
	}
	return out
}

// Restarts returns how many times the worker of target was relaunched.
func (s *Supervisor) Restarts(target string) int {
	for _, e := range s.entries {
		if e.target == target {
			return e.restarts
		}
	}
	return 0
}

func (s *Supervisor) writePIDs() {
	if s.opts.PIDFile == "" {
		return
	}
	if err := WritePIDFile(s.opts.PIDFile, s.Targets()); err != nil {
		s.logger.Error("writing pid file", "path", s.opts.PIDFile, "error", err)
	}
}
