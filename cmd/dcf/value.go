package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentic_dcf/pkg/core/valuation"
)

func newValueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Run the DCF kernel once",
		Example: `  dcf value -i inputs.json
  dcf value -f fundamentals.json --mid-year --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInputs()
			if err != nil {
				return err
			}
			res, err := valuation.Value(in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "%s value per share: %.2f (%s)\n", in.Ticker, res.ValuePerShare, res.Notes)
			fmt.Fprintf(out, "  PV explicit: %.0f  PV terminal: %.0f  equity: %.0f\n", res.PVExplicit, res.PVTerminal, res.EquityValue)
			return nil
		},
	}
	addInputFlags(cmd)
	return cmd
}
