package cmd

import (
	"context"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/output"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [target...]",
	Short: "Show worker liveness and the latest status capture per target",
	Long: `Read the target list, the supervisor's pid file and the status
database, and print one entry per target: the recorded worker pid,
whether that process is alive, the number of status rows stored and
the most recent one.

Examples:
  vmtest status
  vmtest status 10.0.0.5 10.0.0.6
  vmtest status --format json --pretty`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	f := &fleet{cfg: cfg, logger: logger}

	targets, err := f.Targets(ctx)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(args))
	for _, a := range args {
		want[a] = true
	}

	result := output.StatusResult{
		PIDFile:  cfg.PIDFile,
		Database: cfg.Status.Database,
		Targets:  []output.TargetStatus{},
	}
	for _, t := range targets {
		if len(want) > 0 && !want[t.Address] {
			continue
		}
		result.Targets = append(result.Targets, f.targetStatus(ctx, t))
	}
	return output.Print(result)
}

// targetStatus joins t with its latest status row and stored row count.
func (f *fleet) targetStatus(ctx context.Context, t model.Target) output.TargetStatus {
	ts := output.TargetStatus{Address: t.Address, PID: t.PID, Alive: t.Alive}
	row, err := f.Status(ctx, t.Address)
	switch {
	case err != nil:
		ts.LastError = err.Error()
	case row != nil:
		ts.Values = row.Values
		if ts.Rows, err = f.store().Count(ctx, f.cfg.Status.Table, t.Address); err != nil {
			ts.LastError = err.Error()
		}
	}
	return ts
}
