package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"agentic_dcf/pkg/core/assumption"
	"agentic_dcf/pkg/core/config"
	"agentic_dcf/pkg/core/logging"
	"agentic_dcf/pkg/core/store"
	"agentic_dcf/pkg/core/utils"
	"agentic_dcf/pkg/core/valuation"
	"agentic_dcf/pkg/models"
)

var (
	cfgFile          string
	logLevel         string
	inputsFile       string
	fundamentalsFile string
	midYear          bool
	jsonOut          bool

	cfg config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dcf",
		Short: "Driver-based DCF valuation with routed refinement",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(cfgFile); err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logging.Setup(cfg.LogLevel, cfg.LogJSON)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/dcf.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")

	rootCmd.AddCommand(newValueCmd())
	rootCmd.AddCommand(newSensitivityCmd())
	rootCmd.AddCommand(newRefineCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addInputFlags registers the flags shared by every command that values a company.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputsFile, "inputs", "i", "", "kernel inputs file (JSON or Hjson)")
	cmd.Flags().StringVarP(&fundamentalsFile, "fundamentals", "f", "", "fundamentals file; inputs are built from it")
	cmd.Flags().BoolVar(&midYear, "mid-year", false, "use mid-year discounting")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
	cmd.MarkFlagsMutuallyExclusive("inputs", "fundamentals")
	cmd.MarkFlagsOneRequired("inputs", "fundamentals")
}

// loadInputs reads --inputs directly or builds them from --fundamentals.
func loadInputs() (valuation.Inputs, error) {
	if inputsFile != "" {
		var in valuation.Inputs
		if err := readFile(inputsFile, &in); err != nil {
			return in, err
		}
		if midYear {
			in.Discounting = valuation.MidYear
		}
		return in, nil
	}

	var f models.Fundamentals
	if err := readFile(fundamentalsFile, &f); err != nil {
		return valuation.Inputs{}, err
	}
	opts := cfg.Builder
	opts.MidYear = opts.MidYear || midYear
	in, err := assumption.BuildInputs(&f, opts)
	if err != nil {
		return in, fmt.Errorf("build inputs from %s: %w", fundamentalsFile, err)
	}
	log.Debug().Str("ticker", in.Ticker).Int("horizon", in.Horizon).Msg("[BUILDER] inputs built from fundamentals")
	return in, nil
}

func readFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := utils.ParseHJSON(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// openRepo returns the session store: Postgres mirrored to disk when DATABASE_URL is
// set, otherwise disk only. The returned func releases the pool.
func openRepo(ctx context.Context) (store.SessionRepository, func(), error) {
	local, err := store.NewFileSessionRepo(cfg.Store.SessionDir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.DatabaseURL == "" {
		return local, func() {}, nil
	}

	pool, err := store.InitDB(ctx, cfg.Store.DatabaseURL)
	if err == nil {
		err = store.EnsureSchema(ctx, pool)
	}
	if err != nil {
		log.Warn().Err(err).Msg("[STORE] database unavailable, using local session files only")
		return local, func() {}, nil
	}
	return store.NewHybridSessionRepo(store.NewPGSessionRepo(pool), local), store.Close, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
