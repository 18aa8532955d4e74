package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmagro/eth-fee-profiler/internal/config"
	"github.com/dmagro/eth-fee-profiler/internal/fees"
	"github.com/dmagro/eth-fee-profiler/internal/output"
	"github.com/dmagro/eth-fee-profiler/internal/rpc"
)

func probeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [endpoint...]",
		Short: "Check endpoints for liveness, chain id and head height",
		Long: `Probe one or more RPC endpoints concurrently and report what each
answers for chain id and head height. When several endpoints respond,
their heads are compared to flag lagging or diverged nodes.

With no arguments the configured endpoint is probed.

Examples:
  feeprofile probe
  feeprofile probe https://eth.llamarpc.com https://rpc.ankr.com/eth`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoints := args
			if len(endpoints) == 0 {
				cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
				settings, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				if settings.RPCURL == "" {
					return fmt.Errorf("no endpoints given and no rpc url configured (set %s)", config.EnvRPCURL)
				}
				endpoints = []string{settings.RPCURL}
			}
			return runProbe(cmd.Context(), endpoints)
		},
	}

	return cmd
}

func runProbe(ctx context.Context, endpoints []string) error {
	if !output.IsTerminal() {
		output.DisableColors()
	}

	rows := make([]output.ProbeRow, len(endpoints))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, endpoint := range endpoints {
		i, endpoint := i, endpoint
		g.Go(func() error {
			row := probeEndpoint(gctx, endpoint)
			mu.Lock()
			rows[i] = row
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	output.RenderProbeTerminal(os.Stdout, rows)

	failed := 0
	for _, row := range rows {
		if row.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  %s: %v\n", row.Endpoint, row.Err)
		}
	}
	if failed == len(endpoints) {
		return fmt.Errorf("all %d endpoint(s) failed", len(endpoints))
	}
	return nil
}

func probeEndpoint(ctx context.Context, endpoint string) output.ProbeRow {
	row := output.ProbeRow{Endpoint: endpoint}

	start := time.Now()
	client, err := rpc.Connect(ctx, endpoint, 0)
	if err != nil {
		row.Err = err
		return row
	}

	chainID, head, err := client.Metadata(ctx)
	row.Latency = time.Since(start)
	if err != nil {
		row.Err = err
		return row
	}

	row.ChainID = chainID
	row.Head = head
	row.Network = fees.DefaultNetworks.Name(chainID)
	return row
}
