package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/config"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/output"
	_ "github.com/OpenVisualCloud/VDI-Toolkit/internal/platform/winapp"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vmtest",
	Short: "Run UI test scripts across a fleet of virtual machines",
	Long: `vmtest supervises one worker per target VM. Each worker loops over the
script files of a directory and drives the VM's UI automation endpoint
with them, moving files over a plain TCP channel and storing the
values captured by the fleet-status script in a SQLite table.`,
	SilenceUsage: true,
}

// Set by PersistentPreRunE for every command.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("config", "vmtest.yaml", "Fleet configuration file (missing file means defaults)")
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json")
	rootCmd.PersistentFlags().Bool("pretty", false, "Indent JSON output")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, _ := rootCmd.PersistentFlags().GetString("format")
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		output.OutputFormat = f
		output.PrettyOutput, _ = rootCmd.PersistentFlags().GetBool("pretty")

		path, _ := rootCmd.PersistentFlags().GetString("config")
		if cfg, err = config.Load(path); err != nil {
			return err
		}

		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		logFormat, _ := rootCmd.PersistentFlags().GetString("log-format")
		logger, err = logging.New(os.Stderr, logging.Options{
			Format: logging.Format(logFormat),
			Level:  level,
			Prefix: processPrefix(cmd, args),
		})
		return err
	}
}

// processPrefix labels log lines of worker processes with their target.
func processPrefix(cmd *cobra.Command, args []string) string {
	if cmd.Name() == "worker" && len(args) > 0 {
		return "worker " + args[0]
	}
	return cmd.Name()
}

// childFlags returns the persistent flags a spawned worker inherits.
func childFlags() []string {
	var out []string
	for _, name := range []string{"config", "log-level", "log-format"} {
		if f := rootCmd.PersistentFlags().Lookup(name); f != nil {
			out = append(out, "--"+name, f.Value.String())
		}
	}
	return out
}
