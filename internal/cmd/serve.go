package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jarredhawkins/textcatcher/internal/catcher"
	"github.com/jarredhawkins/textcatcher/internal/config"
	"github.com/jarredhawkins/textcatcher/internal/metrics"
	"github.com/jarredhawkins/textcatcher/internal/rpc"
)

func newServeCmd(v *viper.Viper, f *filterFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the catch queue over JSON-RPC on stdio",
		Long: `serve reads JSON-RPC 2.0 requests framed with Content-Length headers
from stdin and answers on stdout. Lines sent with catch/line and catch/lines
pass through the queue described by the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closer, err := setup(cmd, v, f)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			collector := metrics.NewCollector()
			startMetrics(ctx, cfg, collector)

			q := catcher.NewQueue()
			srv := rpc.NewServer(q, rpc.WithMetrics(collector), rpc.WithVersion(Version))
			if err := cfg.Populate(q, config.BuildOptions{
				Emit:    srv.Emit,
				OnBlock: collector.ObserveBlock,
			}); err != nil {
				return err
			}

			err = srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
