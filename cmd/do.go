package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/output"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/script"
	"github.com/spf13/cobra"
)

var doCmd = &cobra.Command{
	Use:   "do <script>",
	Short: "Execute one script against a target and print the report",
	Long: `Parse a script file and execute it once against the target's automation
endpoint. Captures are printed but not stored; use "worker <target>
<script>" to store status captures.

The command exits non-zero when the session could not be established or
when --strict is set and any step failed.

Examples:
  vmtest do --target 10.0.0.5 open_notepad.xml
  vmtest do --target 10.0.0.5 --format json status_query.xml
  vmtest do --target 10.0.0.5 --strict smoke.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runDo,
}

func init() {
	rootCmd.AddCommand(doCmd)
	doCmd.Flags().String("target", "", "Target address (required)")
	doCmd.Flags().Bool("strict", false, "Exit non-zero when any step fails")
	_ = doCmd.MarkFlagRequired("target")
}

func runDo(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")
	strict, _ := cmd.Flags().GetBool("strict")

	sc, err := script.Load(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := &fleet{cfg: cfg, logger: logger}
	res, err := f.interpreter(target, logger.With("target", target)).Execute(ctx, sc)
	if res != nil {
		if perr := output.Print(res); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if strict {
		if n := res.Failed(); n > 0 {
			return fmt.Errorf("%d of %d steps failed", n, len(res.Steps))
		}
	}
	return nil
}
