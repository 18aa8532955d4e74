package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-fee-profiler/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeprofile",
		Short: "Sample recent EVM blocks and profile gas fees",
		Long: `feeprofile walks recent blocks over JSON-RPC and condenses base fees,
effective gas prices and priority tips into percentile profiles, emitted
as JSON for fee oracles and cost dashboards.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file (optional)")

	cmd.AddCommand(profileCmd())
	cmd.AddCommand(probeCmd())

	return cmd
}

func main() {
	config.LoadEnv()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
