package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"agentic_dcf/pkg/core/pipeline"
	"agentic_dcf/pkg/core/refine"
)

var (
	consensusFile string
	peersFile     string
	newsFile      string
	noStore       bool
)

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&consensusFile, "consensus", "", "consensus file (overrides config)")
	cmd.Flags().StringVar(&peersFile, "peers", "", "peer list, JSON or an HTML table (overrides config)")
	cmd.Flags().StringVar(&newsFile, "news", "", "news bundle or summary (overrides config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the router session")
}

func newRefineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Run the routed refinement loop",
		Example: `  dcf refine -i inputs.json --consensus consensus.json --peers peers.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _, err := runRefine(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, out)
			}
			for _, d := range out.Session.Decisions {
				fmt.Fprintf(w, "%2d  %-12s %10.2f  %s\n", d.Iteration, d.Route, d.CurrentValue, d.Reason)
			}
			fmt.Fprintf(w, "session %s: %s (converged=%t)\n", out.Session.ID, out.Session.TerminationReason, out.Session.Converged)
			fmt.Fprintf(w, "final value per share: %.2f\n", out.Result.ValuePerShare)
			return nil
		},
	}
	addInputFlags(cmd)
	addSourceFlags(cmd)
	return cmd
}

// runRefine loads inputs and sources, then runs the loop. The sources are returned for reporting.
func runRefine(ctx context.Context) (*pipeline.Outcome, refine.Sources, error) {
	in, err := loadInputs()
	if err != nil {
		return nil, refine.Sources{}, err
	}

	if consensusFile != "" {
		cfg.Refine.ConsensusPath = consensusFile
	}
	if peersFile != "" {
		cfg.Refine.PeersPath = peersFile
	}
	if newsFile != "" {
		cfg.Refine.NewsPath = newsFile
	}
	src, err := cfg.LoadSources()
	if err != nil {
		return nil, src, err
	}

	r := pipeline.NewRefiner(cfg.PipelineOptions())
	r.SetSources(src)
	if !noStore {
		repo, closeRepo, err := openRepo(ctx)
		if err != nil {
			return nil, src, err
		}
		defer closeRepo()
		r.SetRepository(repo)
	}

	out, err := r.Run(ctx, in)
	return out, src, err
}
