// Package config loads the fleet configuration.
//
// The configuration is a single YAML file. A missing file is not an
// error: every field has a default matching the historical layout of a
// test run directory (vm_ip.txt, plist.txt, *.xml scripts in the
// working directory). A .env file next to the process, when present,
// is loaded first so viewer credentials can be referenced as ${VAR}.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the fleet configuration.
type Config struct {
	// TargetsFile lists target addresses, one per line.
	TargetsFile string `yaml:"targets_file"`

	// PIDFile receives the target→pid mapping after every supervision pass.
	PIDFile string `yaml:"pid_file"`

	// ScriptsDir is walked recursively for scripts with ScriptExt.
	ScriptsDir string `yaml:"scripts_dir"`
	ScriptExt  string `yaml:"script_ext"`

	// EndpointPort is the automation endpoint port on every target.
	EndpointPort int `yaml:"endpoint_port"`

	// LaunchSettle is the pause after launching an application without
	// a splash screen.
	LaunchSettle time.Duration `yaml:"launch_settle"`

	// RescanDelay is the pause before rescanning an empty scripts directory.
	RescanDelay time.Duration `yaml:"rescan_delay"`

	// ClickFallback is the locator strategy tried last for click actions.
	ClickFallback string `yaml:"click_fallback"`

	Status     StatusConfig     `yaml:"status"`
	Transfer   TransferConfig   `yaml:"transfer"`
	Exec       ExecConfig       `yaml:"exec"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Viewer     ViewerConfig     `yaml:"viewer"`
}

// StatusConfig names the fleet-status script and where its captures go.
type StatusConfig struct {
	Script   string `yaml:"script"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// TransferConfig configures the file transfer channel.
type TransferConfig struct {
	Port          int           `yaml:"port"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	AcceptTimeout time.Duration `yaml:"accept_timeout"`
	DialAttempts  int           `yaml:"dial_attempts"`
	DialBackoff   time.Duration `yaml:"dial_backoff"`

	// UploadCommand starts a listener on the target that writes what it
	// receives to {path}. DownloadCommand sends {path} to {host}:{port}.
	UploadCommand   string `yaml:"upload_command"`
	DownloadCommand string `yaml:"download_command"`
}

// ExecConfig describes how exe actions are launched on a target: App is
// started with Args, where {command} is replaced by the action command.
type ExecConfig struct {
	App  string `yaml:"app"`
	Args string `yaml:"args"`
}

// SupervisorConfig tunes the supervision loop.
type SupervisorConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	LaunchSpacing time.Duration `yaml:"launch_spacing"`
}

// ViewerConfig is the argv template of the per-target viewer process.
// {target} is replaced by the target address and ${VAR} references are
// expanded from the environment. An empty command disables viewers.
type ViewerConfig struct {
	Command []string `yaml:"command"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		TargetsFile:   "vm_ip.txt",
		PIDFile:       "plist.txt",
		ScriptsDir:    ".",
		ScriptExt:     ".xml",
		EndpointPort:  4723,
		LaunchSettle:  2 * time.Second,
		RescanDelay:   time.Second,
		ClickFallback: "id",
		Status: StatusConfig{
			Script:   "status_query.xml",
			Database: "vmstatus.db",
			Table:    "vmstatus",
		},
		Transfer: TransferConfig{
			Port:            50000,
			IdleTimeout:     5 * time.Second,
			AcceptTimeout:   60 * time.Second,
			DialAttempts:    10,
			DialBackoff:     500 * time.Millisecond,
			UploadCommand:   `ncat -l {port} --recv-only > "{path}"`,
			DownloadCommand: `ncat {host} {port} --send-only < "{path}"`,
		},
		Exec: ExecConfig{
			App:  `C:\Windows\System32\cmd.exe`,
			Args: `/c start "" {command}`,
		},
		Supervisor: SupervisorConfig{
			PollInterval:  2 * time.Second,
			LaunchSpacing: 50 * time.Millisecond,
		},
	}
}

// Load reads the configuration at path on top of Default. A missing
// file yields the defaults. The .env file in the working directory is
// loaded into the environment first; its absence is ignored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and normalizes ScriptExt to start with a dot
// and ClickFallback to its strategy name.
func (c *Config) Validate() error {
	if c.ScriptExt == "" {
		return fmt.Errorf("script_ext must not be empty")
	}
	if !strings.HasPrefix(c.ScriptExt, ".") {
		c.ScriptExt = "." + c.ScriptExt
	}
	if err := validPort("endpoint_port", c.EndpointPort, false); err != nil {
		return err
	}
	if err := validPort("transfer.port", c.Transfer.Port, true); err != nil {
		return err
	}
	if c.Transfer.IdleTimeout <= 0 {
		return fmt.Errorf("transfer.idle_timeout must be positive")
	}
	if c.Transfer.AcceptTimeout <= 0 {
		return fmt.Errorf("transfer.accept_timeout must be positive")
	}
	if c.Transfer.DialAttempts < 1 {
		return fmt.Errorf("transfer.dial_attempts must be at least 1")
	}
	by, err := platform.ParseBy(c.ClickFallback)
	if err != nil {
		return fmt.Errorf("click_fallback: %w", err)
	}
	c.ClickFallback = string(by)
	if c.Status.Table == "" {
		return fmt.Errorf("status.table must not be empty")
	}
	if c.Supervisor.PollInterval < 0 || c.Supervisor.LaunchSpacing < 0 {
		return fmt.Errorf("supervisor intervals must not be negative")
	}
	return nil
}

// Endpoint returns the automation endpoint URL of target.
func (c *Config) Endpoint(target string) string {
	return fmt.Sprintf("http://%s:%d", target, c.EndpointPort)
}

// ViewerArgs expands the viewer command for target. It returns nil when
// viewers are disabled.
func (c *Config) ViewerArgs(target string) []string {
	if len(c.Viewer.Command) == 0 {
		return nil
	}
	args := make([]string, len(c.Viewer.Command))
	for i, a := range c.Viewer.Command {
		args[i] = strings.ReplaceAll(os.ExpandEnv(a), "{target}", target)
	}
	return args
}

func validPort(name string, port int, allowZero bool) error {
	if port == 0 && allowZero {
		return nil
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d out of range", name, port)
	}
	return nil
}
