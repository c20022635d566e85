package cmd

import (
	"fmt"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/imagecmp"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/output"
	"github.com/spf13/cobra"
)

var psnrCmd = &cobra.Command{
	Use:   "psnr <reference> <candidate>",
	Short: "Compare two captured frames by peak signal-to-noise ratio",
	Long: `Decode two images of the same size and print their PSNR in dB over
the 8-bit RGB channels. Identical images report 100.

With --min the result carries pass/fail and the command exits non-zero
below the threshold.

Examples:
  vmtest psnr golden.png frame.png
  vmtest psnr golden.png frame.bmp --min 35`,
	Args: cobra.ExactArgs(2),
	RunE: runPSNR,
}

func init() {
	rootCmd.AddCommand(psnrCmd)
	psnrCmd.Flags().Float64("min", 0, "Minimum acceptable PSNR in dB (0 = report only)")
}

func runPSNR(cmd *cobra.Command, args []string) error {
	minDB, _ := cmd.Flags().GetFloat64("min")

	db, err := imagecmp.ComparePaths(args[0], args[1])
	if err != nil {
		return err
	}
	result := output.PSNRResult{Reference: args[0], Candidate: args[1], PSNR: db}
	if minDB > 0 {
		pass := db >= minDB
		result.Pass = &pass
	}
	if err := output.Print(result); err != nil {
		return err
	}
	if result.Pass != nil && !*result.Pass {
		return fmt.Errorf("psnr %.2f dB below minimum %.2f dB", db, minDB)
	}
	return nil
}
