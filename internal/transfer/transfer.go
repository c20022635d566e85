// Package transfer moves files between this host and a target over a
// plain TCP connection pair.
//
// There is no framing. An upload ends when the orchestrator closes its
// side of the connection. A download ends at EOF or when no byte
// arrives for the idle timeout, so a stalled sender and a finished
// short file look the same.
package transfer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/zeebo/blake3"
)

var (
	// ErrNoLocalAddress is returned when no local IPv4 address shares
	// the target's network.
	ErrNoLocalAddress = errors.New("no local address on the target network")

	// ErrNoConnection is returned when a download's sender never connects.
	ErrNoConnection = errors.New("sender did not connect")
)

// Direction is Upload (local to target) or Download (target to local).
type Direction string

const (
	Upload   Direction = "upload"
	Download Direction = "download"
)

// Session is one single-use transfer.
type Session struct {
	Target    string
	Direction Direction
	Src       string
	Dest      string
}

// Result reports a finished transfer.
type Result struct {
	Bytes    int64
	Digest   string // hex BLAKE3 of the bytes moved
	Duration time.Duration
}

// Execer starts a command on the target without waiting for it.
type Execer interface {
	Exec(ctx context.Context, command string) error
}

// Config holds the channel settings. In the command templates {port},
// {host} and {path} are substituted.
type Config struct {
	Port            int
	IdleTimeout     time.Duration
	AcceptTimeout   time.Duration
	DialAttempts    int
	DialBackoff     time.Duration
	UploadCommand   string
	DownloadCommand string
}

// Channel runs transfers against one target's automation environment.
type Channel struct {
	exec   Execer
	cfg    Config
	logger *slog.Logger

	// localAddr picks the address the target connects back to.
	localAddr func(ctx context.Context, target string) (string, error)
}

// New returns a Channel that starts target-side commands through exec.
// A nil logger discards.
func New(exec Execer, cfg Config, logger *slog.Logger) *Channel {
	logger = logging.Discard(logger)
	if cfg.DialAttempts < 1 {
		cfg.DialAttempts = 1
	}
	return &Channel{exec: exec, cfg: cfg, logger: logger, localAddr: LocalAddrFor}
}

// Run performs s and blocks until it completes.
func (c *Channel) Run(ctx context.Context, s Session) (Result, error) {
	switch s.Direction {
	case Upload:
		return c.Upload(ctx, s.Target, s.Src, s.Dest)
	case Download:
		return c.Download(ctx, s.Target, s.Src, s.Dest)
	default:
		return Result{}, fmt.Errorf("unknown transfer direction %q", s.Direction)
	}
}

func expand(tmpl, host string, port int, path string) string {
	return strings.NewReplacer(
		"{host}", host,
		"{port}", strconv.Itoa(port),
		"{path}", path,
	).Replace(tmpl)
}

// Upload has the target listen on the transfer port writing to
// remoteDest, then connects and streams localSrc.
func (c *Channel) Upload(ctx context.Context, target, localSrc, remoteDest string) (Result, error) {
	start := time.Now()
	f, err := os.Open(localSrc)
	if err != nil {
		return Result{}, fmt.Errorf("upload: %w", err)
	}
	defer f.Close()

	cmd := expand(c.cfg.UploadCommand, target, c.cfg.Port, remoteDest)
	if err := c.exec.Exec(ctx, cmd); err != nil {
		return Result{}, fmt.Errorf("upload: starting listener on %s: %w", target, err)
	}

	conn, err := c.dial(ctx, target)
	if err != nil {
		return Result{}, fmt.Errorf("upload: %w", err)
	}
	defer conn.Close()

	h := blake3.New()
	w := &deadlineConn{Conn: conn, idle: c.cfg.IdleTimeout}
	n, err := io.Copy(io.MultiWriter(w, h), f)
	if err != nil {
		return Result{}, fmt.Errorf("upload: sending %s: %w", localSrc, err)
	}
	if err := conn.Close(); err != nil {
		return Result{}, fmt.Errorf("upload: closing connection: %w", err)
	}

	res := Result{Bytes: n, Digest: digest(h), Duration: time.Since(start)}
	c.logger.Info("upload complete", "target", target, "src", localSrc, "dest", remoteDest,
		"bytes", res.Bytes, "digest", res.Digest, "elapsed", res.Duration)
	return res, nil
}

// dial connects to the target's listener, retrying while it starts up.
func (c *Channel) dial(ctx context.Context, target string) (net.Conn, error) {
	addr := net.JoinHostPort(target, strconv.Itoa(c.cfg.Port))
	d := net.Dialer{Timeout: c.cfg.IdleTimeout}
	var lastErr error
	for attempt := 1; attempt <= c.cfg.DialAttempts; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.Debug("transfer dial failed", "target", target, "attempt", attempt, "error", err)
		if attempt == c.cfg.DialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.DialBackoff):
		}
	}
	return nil, fmt.Errorf("connecting to %s after %d attempts: %w", addr, c.cfg.DialAttempts, lastErr)
}

// Download listens on the transfer port, then has the target send
// remoteSrc to it. The received bytes are written to localDest.
func (c *Channel) Download(ctx context.Context, target, remoteSrc, localDest string) (Result, error) {
	start := time.Now()
	host, err := c.localAddr(ctx, target)
	if err != nil {
		return Result{}, fmt.Errorf("download: %w", err)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(c.cfg.Port)))
	if err != nil {
		return Result{}, fmt.Errorf("download: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.receive(ctx, ln, localDest)
		done <- outcome{res, err}
	}()

	// The listener is bound, so the sender cannot race ahead of it.
	cmd := expand(c.cfg.DownloadCommand, host, port, remoteSrc)
	if err := c.exec.Exec(ctx, cmd); err != nil {
		c.logger.Warn("download send command failed", "target", target, "error", err)
	}

	out := <-done
	if out.err != nil {
		return Result{}, fmt.Errorf("download %s from %s: %w", remoteSrc, target, out.err)
	}
	out.res.Duration = time.Since(start)
	c.logger.Info("download complete", "target", target, "src", remoteSrc, "dest", localDest,
		"bytes", out.res.Bytes, "digest", out.res.Digest, "elapsed", out.res.Duration)
	return out.res, nil
}

// receive accepts one connection on ln and copies it to dest until EOF
// or the idle timeout. ln is closed before returning.
func (c *Channel) receive(ctx context.Context, ln net.Listener, dest string) (Result, error) {
	stopListen := context.AfterFunc(ctx, func() { ln.Close() })
	defer stopListen()

	if dl, ok := ln.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(time.Now().Add(c.cfg.AcceptTimeout))
	}
	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if isTimeout(err) {
			return Result{}, ErrNoConnection
		}
		return Result{}, err
	}
	defer conn.Close()
	stopConn := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopConn()

	f, err := os.Create(dest)
	if err != nil {
		return Result{}, err
	}
	h := blake3.New()
	n, err := copyIdle(io.MultiWriter(f, h), conn, c.cfg.IdleTimeout)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	return Result{Bytes: n, Digest: digest(h)}, nil
}

// copyIdle copies from conn until EOF or until no data arrives for idle.
// Both endings are success.
func copyIdle(w io.Writer, conn net.Conn, idle time.Duration) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		if err := conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return total, err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), isTimeout(err):
			return total, nil
		default:
			return total, err
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func digest(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// deadlineConn refreshes the write deadline before every write so a
// stalled receiver fails the upload after the idle timeout.
type deadlineConn struct {
	net.Conn
	idle time.Duration
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	if d.idle > 0 {
		if err := d.Conn.SetWriteDeadline(time.Now().Add(d.idle)); err != nil {
			return 0, err
		}
	}
	return d.Conn.Write(p)
}
