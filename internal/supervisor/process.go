package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a launched child process.
type Process interface {
	PID() int

	// Exited reports whether the process has terminated. It never blocks.
	Exited() bool

	// Stop kills the process and waits for it to be reaped.
	Stop() error
}

// Launcher starts the process bound to a target.
type Launcher interface {
	Launch(ctx context.Context, target string) (Process, error)
}

// ExecLauncher starts an OS process per target.
type ExecLauncher struct {
	// Argv returns the command line for target; Argv(target)[0] is the
	// program.
	Argv func(target string) []string

	// Env is appended to the supervisor's environment.
	Env []string

	Stdout io.Writer
	Stderr io.Writer
}

// Launch implements Launcher. The child is not tied to ctx: stopping
// the supervisor leaves its children running.
func (l *ExecLauncher) Launch(ctx context.Context, target string) (Process, error) {
	argv := l.Argv(target)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command for %s", target)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go p.reap()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

// reap waits for the process so it never lingers as a zombie, then
// marks it exited.
func (p *execProcess) reap() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the wait error once the process has exited.
func (p *execProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *execProcess) Stop() error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !p.Exited() {
		return err
	}
	<-p.done
	return nil
}
