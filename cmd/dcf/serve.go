package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	apiconfig "agentic_dcf/pkg/api/config"
	"agentic_dcf/pkg/api/valuation"
	"agentic_dcf/pkg/core/llm"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the valuation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, closeRepo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			mux := http.NewServeMux()
			valuation.NewHandler(cfg.PipelineOptions(), repo).RegisterRoutes(mux)
			apiconfig.NewHandler(llm.NewManager(cfg.LLM)).RegisterRoutes(mux)
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Msg("[API] server starting")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("[API] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and DCF_ADDR)")
	return cmd
}
