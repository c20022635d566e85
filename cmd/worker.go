package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/output"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/script"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker <target> [script]",
	Short: "Run scripts against one target",
	Long: `Loop over the script files under the scripts directory, executing each
against the target's automation endpoint, and rescan from the top when
the list is exhausted. The supervisor starts one worker per target.

With a script argument the worker runs that script once, prints the
report and exits.

Examples:
  vmtest worker 10.0.0.5
  vmtest worker 10.0.0.5 --scripts ./suite --passes 1
  vmtest worker 10.0.0.5 status_query.xml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().String("scripts", "", "Scripts directory (overrides scripts_dir)")
	workerCmd.Flags().Int("passes", 0, "Stop after this many directory scans (0 = forever)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	target := args[0]
	f := &fleet{cfg: cfg, logger: logger}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 2 {
		res, err := f.RunScript(ctx, target, args[1])
		if res != nil {
			if perr := output.Print(res); perr != nil {
				return perr
			}
		}
		return err
	}

	dir := cfg.ScriptsDir
	if v, _ := cmd.Flags().GetString("scripts"); v != "" {
		dir = v
	}
	passes, _ := cmd.Flags().GetInt("passes")
	it := script.Bounded(dir, cfg.ScriptExt, passes)

	err := f.worker(target).Run(ctx, it)
	logger.Info("worker stopped", "target", target, "passes", it.Pass())
	if ctx.Err() != nil {
		return nil
	}
	return err
}
