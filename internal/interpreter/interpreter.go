// Package interpreter executes scripts against a target's automation
// endpoint.
//
// Execution is best effort: a failing action is logged and recorded in
// the step report, its delay is still taken, and the next action runs.
// Only failure to establish the application session aborts a run.
package interpreter

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/locator"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/transfer"
	"github.com/google/uuid"
)

// DialFunc returns the automation provider for an endpoint URL.
type DialFunc func(endpoint string) (*platform.Provider, error)

// Options configures an Interpreter.
type Options struct {
	// Target is the address recorded in capture records and used for
	// transfers.
	Target string

	// Endpoint is used when a script does not declare app_url.
	Endpoint string

	// LaunchSettle is the pause after launching an application.
	LaunchSettle time.Duration

	// ClickFallback is the lookup tried when no resolver strategy finds
	// a click target. Empty means platform.ByID.
	ClickFallback platform.By

	Transfer transfer.Config
	Logger   *slog.Logger
}

// Interpreter runs scripts for one target.
type Interpreter struct {
	dial     DialFunc
	opts     Options
	logger   *slog.Logger
	resolver *locator.Resolver

	// clickFallback runs after the resolver misses on click.
	clickFallback locator.Strategy

	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

// New returns an Interpreter that reaches endpoints through dial.
func New(dial DialFunc, opts Options) *Interpreter {
	logger := logging.Discard(opts.Logger)
	fallback := opts.ClickFallback
	if fallback == "" {
		fallback = platform.ByID
	}
	return &Interpreter{
		dial:          dial,
		opts:          opts,
		logger:        logger,
		resolver:      locator.New(logger),
		clickFallback: locator.Lookup{By: fallback},
		sleep:         sleep,
		rng:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
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

// StepResult is the outcome of one action.
type StepResult struct {
	Step     int           `yaml:"step"               json:"step"`
	Action   string        `yaml:"action"             json:"action"`
	OK       bool          `yaml:"ok"                 json:"ok"`
	Error    string        `yaml:"error,omitempty"    json:"error,omitempty"`
	Strategy string        `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Elapsed  time.Duration `yaml:"elapsed"            json:"elapsed"`
}

// Result is the report of one script execution.
type Result struct {
	RunID    string               `yaml:"run_id"   json:"run_id"`
	Target   string               `yaml:"target"   json:"target"`
	Script   string               `yaml:"script"   json:"script"`
	Endpoint string               `yaml:"endpoint" json:"endpoint"`
	Capture  *model.CaptureRecord `yaml:"capture"  json:"capture"`
	Steps    []StepResult         `yaml:"steps"    json:"steps"`
}

// Failed returns the number of failed steps.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.OK {
			n++
		}
	}
	return n
}

// run is the state of one execution, passed to every action.
type run struct {
	provider    *platform.Provider
	app         platform.Session
	root        platform.Session
	windowClass string
	capture     *model.CaptureRecord
	channel     *transfer.Channel
	logger      *slog.Logger
}

func (r *run) scope(s platform.Session) locator.Scope {
	return locator.Scope{Session: s, Remote: r.provider.Remote}
}

// windowScope is the desktop scope used to find the application window.
// app_class narrows only this lookup.
func (r *run) windowScope(root platform.Session) locator.Scope {
	sc := r.scope(root)
	sc.WindowClass = r.windowClass
	return sc
}

// rootSession returns the desktop session, creating it on first use.
func (r *run) rootSession(ctx context.Context) (platform.Session, error) {
	if r.root != nil {
		return r.root, nil
	}
	s, err := r.provider.Driver.NewSession(ctx, platform.Capabilities{App: platform.RootApp})
	if err != nil {
		return nil, fmt.Errorf("root session: %w", err)
	}
	r.root = s
	return s, nil
}

// Execute runs sc. The returned Result is non-nil whenever a session was
// established, even if the context ends the run early.
func (in *Interpreter) Execute(ctx context.Context, sc *model.Script) (*Result, error) {
	endpoint := sc.Metadata.Endpoint
	if endpoint == "" {
		endpoint = in.opts.Endpoint
	}
	res := &Result{
		RunID:    uuid.NewString(),
		Target:   in.opts.Target,
		Script:   sc.Path,
		Endpoint: endpoint,
		Capture:  model.NewCaptureRecord(in.opts.Target),
	}
	logger := in.logger.With("run", res.RunID, "script", sc.Path)

	provider, err := in.dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", endpoint, err)
	}
	r := &run{
		provider:    provider,
		windowClass: sc.Metadata.WindowClass,
		capture:     res.Capture,
		channel:     transfer.New(provider.Driver, in.opts.Transfer, logger),
		logger:      logger,
	}
	if err := in.establish(ctx, r, sc.Metadata); err != nil {
		return nil, err
	}
	logger.Info("script started", "endpoint", endpoint, "actions", len(sc.Actions))

	for i, a := range sc.Actions {
		start := time.Now()
		step := StepResult{Step: i + 1, Action: a.String()}
		strategy, err := in.perform(ctx, r, a)
		step.Strategy = strategy
		if err != nil {
			step.Error = err.Error()
			logger.Warn("action failed", "step", step.Step, "action", step.Action, "error", err)
		} else {
			step.OK = true
			logger.Debug("action done", "step", step.Step, "action", step.Action)
		}

		serr := in.sleep(ctx, a.Delay)
		step.Elapsed = time.Since(start)
		res.Steps = append(res.Steps, step)
		if serr != nil {
			logger.Warn("script interrupted", "step", step.Step, "error", serr)
			return res, serr
		}
	}
	logger.Info("script finished", "failed", res.Failed(), "captured", len(res.Capture.Values))
	return res, nil
}

// establish opens the application session. With a splash screen the app
// is launched, its real top-level window is found from the desktop
// session by app_name, and a session is attached to that window.
func (in *Interpreter) establish(ctx context.Context, r *run, meta model.Metadata) error {
	if meta.AppPath == platform.RootApp {
		root, err := r.rootSession(ctx)
		if err != nil {
			return err
		}
		r.app = root
		return nil
	}

	caps := platform.AppCapabilities(meta.AppPath, meta.AppArgs)
	if !meta.Splash {
		app, err := r.provider.Driver.NewSession(ctx, caps)
		if err != nil {
			return fmt.Errorf("launching %s: %w", meta.AppPath, err)
		}
		r.app = app
		return in.sleep(ctx, in.opts.LaunchSettle)
	}

	root, err := r.rootSession(ctx)
	if err != nil {
		return err
	}
	// The launch session is bound to the splash window, which goes away.
	if _, err := r.provider.Driver.NewSession(ctx, caps); err != nil {
		r.logger.Debug("splash launch session", "app", meta.AppPath, "error", err)
	}
	if err := in.sleep(ctx, in.opts.LaunchSettle); err != nil {
		return err
	}
	m, err := in.resolver.Resolve(ctx, r.windowScope(root), meta.AppName)
	if err != nil {
		return fmt.Errorf("finding window %q: %w", meta.AppName, err)
	}
	handle, err := m.Element.Attribute(ctx, "NativeWindowHandle")
	if err != nil {
		return fmt.Errorf("window handle of %q: %w", meta.AppName, err)
	}
	wcaps, err := platform.WindowCapabilities(handle)
	if err != nil {
		return fmt.Errorf("window %q: %w", meta.AppName, err)
	}
	app, err := r.provider.Driver.NewSession(ctx, wcaps)
	if err != nil {
		return fmt.Errorf("attaching to %q: %w", meta.AppName, err)
	}
	r.logger.Info("attached to application window", "app", meta.AppName, "window", wcaps.AppTopLevelWindow)
	r.app = app
	return nil
}
