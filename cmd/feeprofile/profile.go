package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-fee-profiler/internal/config"
	"github.com/dmagro/eth-fee-profiler/internal/fees"
	"github.com/dmagro/eth-fee-profiler/internal/output"
	"github.com/dmagro/eth-fee-profiler/internal/rpc"
	"github.com/dmagro/eth-fee-profiler/internal/util"
)

// progressEvery is how many sampled blocks pass between progress lines.
const progressEvery = 16

func profileCmd() *cobra.Command {
	var (
		rpcURL   string
		blocks   int
		step     int
		headArg  string
		jsonOnly bool
		pretty   bool
		retries  int
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Sample recent blocks and profile their fees",
		Long: `Walk recent blocks back from the chain head and aggregate base fees,
effective gas prices and priority tips into p50/p95 buckets.

Examples:
  feeprofile profile
  feeprofile profile --blocks 128 --step 2
  feeprofile profile --json
  feeprofile profile --pretty --head 24277510
  feeprofile profile --rpc https://eth.llamarpc.com --out reports/mainnet.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")

			settings, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("rpc") {
				settings.RPCURL = rpcURL
			}
			if cmd.Flags().Changed("blocks") {
				settings.Blocks = blocks
			}
			if cmd.Flags().Changed("step") {
				settings.Step = step
			}
			if err := settings.Validate(); err != nil {
				return err
			}

			head, err := util.ParseBlockArg(headArg)
			if err != nil {
				return err
			}

			return runProfile(cmd.Context(), settings, profileFlags{
				head:     head,
				jsonOnly: jsonOnly,
				pretty:   pretty,
				retries:  retries,
				outPath:  outPath,
			})
		},
	}

	cmd.Flags().StringVar(&rpcURL, "rpc", "", "RPC endpoint URL (default: RPC_URL)")
	cmd.Flags().IntVarP(&blocks, "blocks", "b", config.DefaultBlocks, "How many recent blocks to span")
	cmd.Flags().IntVarP(&step, "step", "s", config.DefaultStep, "Sample every Nth block")
	cmd.Flags().StringVar(&headArg, "head", "", "Pin the head block (decimal, 0x hex, or \"latest\")")
	cmd.Flags().BoolVar(&jsonOnly, "json", false, "Print only the compact JSON payload")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Print only the indented JSON payload")
	cmd.Flags().IntVar(&retries, "retries", 0, "Extra attempts per RPC call (0 = single shot)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the indented JSON payload to this file")

	return cmd
}

type profileFlags struct {
	head     *uint64
	jsonOnly bool
	pretty   bool
	retries  int
	outPath  string
}

func runProfile(ctx context.Context, settings *config.Settings, fl profileFlags) error {
	if fl.jsonOnly || fl.pretty || !output.IsTerminal() {
		output.DisableColors()
	}

	started := time.Now()
	fmt.Fprintf(os.Stderr, "Fee profile started at %s UTC\n", started.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(os.Stderr, "Endpoint: %s\n", settings.RPCURL)
	if settings.HasPlaceholderURL() {
		fmt.Fprintln(os.Stderr, "Warning: endpoint still contains the your_api_key placeholder")
	}

	client, err := rpc.Connect(ctx, settings.RPCURL, fl.retries)
	if err != nil {
		return err
	}

	if chainID, head, err := client.Metadata(ctx); err == nil {
		fmt.Fprintf(os.Stderr, "Connected to %s (head %s) in %s\n",
			fees.DefaultNetworks.Name(chainID), rpc.FormatNumber(head),
			time.Since(started).Round(time.Millisecond))
	} else {
		fmt.Fprintf(os.Stderr, "Connected in %s (chain metadata unavailable: %v)\n",
			time.Since(started).Round(time.Millisecond), err)
	}

	progress := func(block uint64, sampled int) {
		if sampled == 1 {
			fmt.Fprintf(os.Stderr, "Sampling %d recent blocks (every %d) from head %s\n",
				settings.Blocks, settings.Step, rpc.FormatNumber(block))
		}
		if sampled%progressEvery == 0 {
			fmt.Fprintf(os.Stderr, "  at block %s (%d sampled)\n", rpc.FormatNumber(block), sampled)
		}
	}

	profile, err := fees.Collect(ctx, client, fees.Options{
		BlockCount:   settings.Blocks,
		Step:         settings.Step,
		HeadOverride: fl.head,
		Progress:     progress,
	})
	if err != nil {
		return err
	}

	env := output.NewEnvelope(profile, time.Now())

	payload, withSummary, err := profilePayload(env, fl)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if withSummary {
		output.RenderProfileTerminal(os.Stdout, profile)
	}
	fmt.Println(string(payload))

	if fl.outPath != "" {
		indented, err := output.PrettyJSON(env)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		if err := output.WriteFile(fl.outPath, indented); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved profile to %s\n", fl.outPath)
	}

	fmt.Fprintln(os.Stderr, doneLine(profile))
	return nil
}

// doneLine reports the walk timing carried in the payload, not total wall
// clock.
func doneLine(p *fees.Profile) string {
	return fmt.Sprintf("Done in %gs", p.TimingSec)
}

// profilePayload renders the envelope for the selected output mode. Pretty
// wins when both JSON flags are set; the human summary accompanies the
// payload only in the default mode.
func profilePayload(env output.Envelope, fl profileFlags) (payload []byte, withSummary bool, err error) {
	switch {
	case fl.pretty:
		payload, err = output.PrettyJSON(env)
	case fl.jsonOnly:
		payload, err = output.CompactJSON(env)
	default:
		withSummary = true
		payload, err = output.CompactJSON(env)
	}
	return payload, withSummary, err
}
