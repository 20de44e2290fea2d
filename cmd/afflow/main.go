// Command afflow runs affiliate campaign pipelines, either as a one-shot
// cycle or behind an HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/davidroman0O/afflow"
	"github.com/davidroman0O/afflow/host"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	root := &cobra.Command{
		Use:           "afflow",
		Short:         "Affiliate campaign pipeline runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "pipeline config file (YAML)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd(&configPath, &debug))
	root.AddCommand(newCycleCmd(&configPath, &debug))
	return root
}

func setup(configPath string, debug bool) (afflow.Config, *zap.Logger, func(), error) {
	cfg := afflow.DefaultConfig()
	if configPath != "" {
		loaded, err := afflow.LoadConfig(configPath)
		if err != nil {
			return cfg, nil, nil, err
		}
		cfg = loaded
	}

	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	zlog, err := zcfg.Build()
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	cleanup := func() {
		_ = tp.Shutdown(context.Background())
		_ = zlog.Sync()
	}
	return cfg, zlog, cleanup, nil
}

func newServeCmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the campaign HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zlog, cleanup, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer cleanup()

			srvCfg, err := host.LoadServerConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := host.NewServer(srvCfg, cfg, afflow.NewZapLogger(zlog))
			return srv.ListenAndServe(ctx)
		},
	}
}

func newCycleCmd(configPath *string, debug *bool) *cobra.Command {
	var cycles int

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one or more pipeline cycles and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zlog, cleanup, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer cleanup()

			c := host.NewCampaign("cli", cfg, afflow.NewZapLogger(zlog))
			defer c.Close()
			for i := 0; i < cycles; i++ {
				status, err := c.RunCycle(cmd.Context())
				if err != nil {
					return fmt.Errorf("cycle %d: %w", i+1, err)
				}
				fmt.Printf("cycle %d: prospects=%d affiliates=%d commissions=%d\n",
					i+1, status.Prospects, status.ActiveAffiliates, status.Commissions)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&cycles, "cycles", "n", 1, "number of cycles to run")
	return cmd
}
