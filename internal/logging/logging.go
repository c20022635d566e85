// Package logging builds the process logger.
//
// Every component takes a *slog.Logger. On a terminal the handler is
// charmbracelet/log with timestamps and a per-process prefix (the
// supervisor and each worker write to the same console); --log-format
// json switches to slog's JSON handler for collection.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Format selects the handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Format Format
	Level  string
	Prefix string
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	switch opts.Format {
	case "", FormatText:
		handler := log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Prefix:          opts.Prefix,
			Level:           log.Level(level),
		})
		return slog.New(handler), nil
	case FormatJSON:
		handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		logger := slog.New(handler)
		if opts.Prefix != "" {
			logger = logger.With("process", opts.Prefix)
		}
		return logger, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s (use text or json)", opts.Format)
	}
}

// Discard returns logger when non-nil and a no-op logger otherwise.
func Discard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q (use debug, info, warn, or error)", s)
	}
}
