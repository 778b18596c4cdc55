package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentic_dcf/pkg/core/sensitivity"
)

func newSensitivityCmd() *cobra.Command {
	var growthSteps, marginSteps int
	var growthDelta, marginDelta float64

	cmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "Compute the growth by margin value-per-share grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInputs()
			if err != nil {
				return err
			}
			opts := cfg.Sensitivity
			if cmd.Flags().Changed("growth-steps") {
				opts.GrowthSteps = growthSteps
			}
			if cmd.Flags().Changed("margin-steps") {
				opts.MarginSteps = marginSteps
			}
			if cmd.Flags().Changed("growth-delta") {
				opts.GrowthDelta = growthDelta
			}
			if cmd.Flags().Changed("margin-delta") {
				opts.MarginDelta = marginDelta
			}

			grid, err := sensitivity.Compute(cmd.Context(), in, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, grid)
			}
			fmt.Fprintf(out, "%-10s", "dm \\ dg")
			for _, dg := range grid.GrowthAxis {
				fmt.Fprintf(out, "%10s", fmt.Sprintf("%+.2f%%", dg*100))
			}
			fmt.Fprintln(out)
			for i, dm := range grid.MarginAxis {
				fmt.Fprintf(out, "%-10s", fmt.Sprintf("%+.2f%%", dm*100))
				for _, v := range grid.Grid[i] {
					fmt.Fprintf(out, "%10.2f", v)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	addInputFlags(cmd)
	cmd.Flags().IntVar(&growthSteps, "growth-steps", 5, "growth axis points")
	cmd.Flags().IntVar(&marginSteps, "margin-steps", 5, "margin axis points")
	cmd.Flags().Float64Var(&growthDelta, "growth-delta", 0.02, "growth axis half-width")
	cmd.Flags().Float64Var(&marginDelta, "margin-delta", 0.01, "margin axis half-width")
	return cmd
}
