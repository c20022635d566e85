package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/supervisor"
	"github.com/spf13/cobra"
)

var superviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Launch and keep alive one worker per target",
	Long: `Read the target list, launch one worker process per target, and poll
them forever. An exited worker is relaunched on the next check with no
backoff. After every pass the target→pid mapping is rewritten.

When viewer.command is configured, a viewer process per target is
supervised the same way. Workers keep running after the supervisor is
interrupted unless --stop-workers is given.

Examples:
  vmtest supervise
  vmtest supervise --targets vm_ip.txt --pid-file plist.txt
  vmtest --config lab.yaml supervise --stop-workers`,
	RunE: runSupervise,
}

func init() {
	rootCmd.AddCommand(superviseCmd)
	superviseCmd.Flags().String("targets", "", "Target list file (overrides targets_file)")
	superviseCmd.Flags().String("pid-file", "", "Pid mapping file (overrides pid_file)")
	superviseCmd.Flags().String("scripts", "", "Scripts directory passed to workers (overrides scripts_dir)")
	superviseCmd.Flags().Bool("stop-workers", false, "Stop workers and viewers when the supervisor exits")
}

func runSupervise(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("targets"); v != "" {
		cfg.TargetsFile = v
	}
	if v, _ := cmd.Flags().GetString("pid-file"); v != "" {
		cfg.PIDFile = v
	}
	scripts, _ := cmd.Flags().GetString("scripts")
	stopWorkers, _ := cmd.Flags().GetBool("stop-workers")

	f := &fleet{cfg: cfg, logger: logger}
	targets, err := f.readTargets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("%s lists no targets", cfg.TargetsFile)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	workers := &supervisor.ExecLauncher{
		Argv: func(target string) []string {
			argv := append([]string{self}, childFlags()...)
			argv = append(argv, "worker", target)
			if scripts != "" {
				argv = append(argv, "--scripts", scripts)
			}
			return argv
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	opts := supervisor.Options{
		PIDFile:       cfg.PIDFile,
		PollInterval:  cfg.Supervisor.PollInterval,
		LaunchSpacing: cfg.Supervisor.LaunchSpacing,
		StopOnExit:    stopWorkers,
		Logger:        logger,
	}
	if len(cfg.Viewer.Command) > 0 {
		opts.Viewers = &supervisor.ExecLauncher{Argv: cfg.ViewerArgs}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return supervisor.New(targets, workers, opts).Start(ctx)
}
