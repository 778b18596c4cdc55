package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"agentic_dcf/pkg/core/llm"
	"agentic_dcf/pkg/core/report"
)

func newReportCmd() *cobra.Command {
	var outFile string
	var asHTML, narrative bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Refine and render a Markdown or HTML report",
		Example: `  dcf report -i inputs.json -o report.md
  dcf report -f fundamentals.json --narrative --html -o report.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, src, err := runRefine(cmd.Context())
			if err != nil {
				return err
			}
			rep := report.Report{
				Inputs:      out.Inputs,
				Result:      out.Result,
				Sensitivity: out.Sensitivity,
				Session:     out.Session,
				Stability:   out.Stability,
				News:        src.News,
				Peers:       src.Peers,
			}

			md := rep.Markdown()
			if narrative {
				w := &report.NarrativeWriter{Provider: llm.NewManager(cfg.LLM).GetProvider("narrative")}
				if md, err = w.Write(cmd.Context(), rep); err != nil {
					log.Warn().Err(err).Msg("[REPORT] continuing without narrative")
				}
			}

			doc := md
			if asHTML || strings.HasSuffix(strings.ToLower(outFile), ".html") {
				if doc, err = report.RenderHTML(md); err != nil {
					return err
				}
			}

			if outFile == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			if err := os.WriteFile(outFile, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			log.Info().Str("path", outFile).Msg("[REPORT] written")
			return nil
		},
	}
	addInputFlags(cmd)
	addSourceFlags(cmd)
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&asHTML, "html", false, "render HTML")
	cmd.Flags().BoolVar(&narrative, "narrative", false, "add model-written narrative sections")
	return cmd
}
