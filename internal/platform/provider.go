package platform

import (
	"fmt"
	"log/slog"
	"time"
)

// Options configures a Driver.
type Options struct {
	// ExecApp and ExecArgs describe how Exec launches a command;
	// "{command}" in ExecArgs is replaced by the command line.
	ExecApp  string
	ExecArgs string

	// Timeout bounds each endpoint request. Zero means the driver default.
	Timeout time.Duration

	// Logger receives driver warnings. Nil discards.
	Logger *slog.Logger
}

// Provider bundles the driver for one endpoint with what is known about it.
type Provider struct {
	Driver   Driver
	Endpoint string

	// Remote is false when the endpoint runs on this host.
	Remote bool
}

// ErrUnsupported is returned when no driver implementation is registered.
var ErrUnsupported = fmt.Errorf("no automation driver registered")

// NewDriverFunc is set by driver packages via init().
// See internal/platform/winapp/init.go for the WebDriver registration.
var NewDriverFunc func(endpoint string, opts Options) (Driver, error)

// NewProvider returns a Provider for endpoint.
func NewProvider(endpoint string, opts Options) (*Provider, error) {
	if NewDriverFunc == nil {
		return nil, ErrUnsupported
	}
	driver, err := NewDriverFunc(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("driver for %s: %w", endpoint, err)
	}
	return &Provider{
		Driver:   driver,
		Endpoint: endpoint,
		Remote:   !IsLocalEndpoint(endpoint),
	}, nil
}
