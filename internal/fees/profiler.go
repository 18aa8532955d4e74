// Package fees samples recent blocks from an EVM node and condenses their
// fee data into percentile profiles.
package fees

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/dmagro/eth-fee-profiler/internal/rpc"
	"github.com/dmagro/eth-fee-profiler/internal/stats"
)

// eip1559TxType marks transactions that carry fee caps instead of a fixed
// gas price.
const eip1559TxType = 2

// NodeReader is the view of a node the profiler needs. *rpc.Client
// implements it.
type NodeReader interface {
	ChainID(ctx context.Context) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64, fullTx bool) (*rpc.ParsedBlock, error)
}

// Options controls one profiling run.
type Options struct {
	// BlockCount is how many recent block heights the walk spans. Must be > 0.
	BlockCount int

	// Step visits every Step-th block inside the span. Must be > 0.
	Step int

	// HeadOverride pins the newest block of the walk. Nil means the current
	// chain head.
	HeadOverride *uint64

	// Networks maps chain ids to display names. Nil means DefaultNetworks.
	Networks Networks

	// Progress, when set, is called after every sampled block.
	Progress func(block uint64, sampled int)

	// Now returns the current time. Nil means time.Now. It feeds the timing
	// figures only, never the walk itself.
	Now func() time.Time
}

// Profile is the aggregated result of one run. Fields are declared in
// alphabetical key order; the JSON payload contract sorts all object keys.
type Profile struct {
	AvgBlockTimeSec    float64      `json:"avgBlockTimeSec"`
	BaseFeeGwei        stats.Bucket `json:"baseFeeGwei"`
	BlockSpan          int          `json:"blockSpan"`
	ChainID            uint64       `json:"chainId"`
	EffectivePriceGwei stats.Bucket `json:"effectivePriceGwei"`
	HeadBlock          uint64       `json:"headBlock"`
	Network            string       `json:"network"`
	OldestBlock        uint64       `json:"oldestBlock"`
	SampledBlocks      int          `json:"sampledBlocks"`
	Step               int          `json:"step"`
	TimingSec          float64      `json:"timingSec"`
	TipGweiApprox      stats.Bucket `json:"tipGweiApprox"`
}

// Collect walks the chain backwards from the head, sampling every Step-th
// block, and profiles base fees, effective prices and priority tips across
// the sampled transactions. The walk is strictly sequential: for a fixed
// head the same options visit the same heights in the same order.
func Collect(ctx context.Context, node NodeReader, opts Options) (*Profile, error) {
	if opts.BlockCount <= 0 {
		return nil, &InvalidArgumentError{Name: "block count", Value: opts.BlockCount}
	}
	if opts.Step <= 0 {
		return nil, &InvalidArgumentError{Name: "step", Value: opts.Step}
	}

	networks := opts.Networks
	if networks == nil {
		networks = DefaultNetworks
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var head uint64
	if opts.HeadOverride != nil {
		head = *opts.HeadOverride
	} else {
		h, err := node.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve head block: %w", err)
		}
		head = h
	}

	// Oldest height of the walk, clamped at genesis for short chains.
	// Compared as head >= span so a head at the top of the uint64 range
	// cannot wrap.
	var start uint64
	if span := uint64(opts.BlockCount); head >= span {
		start = head - span + 1
	}

	var (
		step      = uint64(opts.Step)
		baseFees  []float64
		effPrices []float64
		tips      []float64
		sampled   int
	)

	began := now()
	for number := head; ; number -= step {
		block, err := node.BlockByNumber(ctx, number, true)
		if err != nil {
			return nil, &FetchError{Block: number, Err: err}
		}

		baseFees = append(baseFees, rpc.WeiToGwei(block.BaseFeePerGas))
		eff, tip := blockFeeSamples(block)
		effPrices = append(effPrices, eff...)
		tips = append(tips, tip...)
		sampled++

		if opts.Progress != nil {
			opts.Progress(number, sampled)
		}
		// number >= start inside the loop, so the subtraction cannot wrap
		// even when start sits at the top of the uint64 range.
		if number-start < step {
			break
		}
	}
	elapsed := now().Sub(began)

	avgBlockTime := averageBlockTime(ctx, node, head, start)

	chainID, err := node.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve chain id: %w", err)
	}

	return &Profile{
		AvgBlockTimeSec:    stats.RoundTo(avgBlockTime, 3),
		BaseFeeGwei:        stats.NewBucket(baseFees),
		BlockSpan:          opts.BlockCount,
		ChainID:            chainID,
		EffectivePriceGwei: stats.NewBucket(effPrices),
		HeadBlock:          head,
		Network:            networks.Name(chainID),
		OldestBlock:        start,
		SampledBlocks:      sampled,
		Step:               opts.Step,
		TimingSec:          stats.RoundTo(elapsed.Seconds(), 3),
		TipGweiApprox:      stats.NewBucket(tips),
	}, nil
}

// blockFeeSamples derives one effective gas price and one tip per
// transaction, in gwei. Type 2 transactions pay min(maxFee, base + priority)
// and tip their full priority fee; everything else pays its gas price and
// tips whatever of it clears the base fee.
func blockFeeSamples(block *rpc.ParsedBlock) (effGwei, tipGwei []float64) {
	baseFee := block.BaseFeePerGas
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	for i := range block.Transactions {
		tx := &block.Transactions[i]

		if tx.Type == eip1559TxType {
			effective := new(big.Int).Add(baseFee, tx.MaxPriorityFeePerGas)
			if tx.MaxFeePerGas.Cmp(effective) < 0 {
				effective = tx.MaxFeePerGas
			}
			effGwei = append(effGwei, rpc.WeiToGwei(effective))
			tipGwei = append(tipGwei, rpc.WeiToGwei(tx.MaxPriorityFeePerGas))
			continue
		}

		tip := new(big.Int).Sub(tx.GasPrice, baseFee)
		if tip.Sign() < 0 {
			tip.SetInt64(0)
		}
		effGwei = append(effGwei, rpc.WeiToGwei(tx.GasPrice))
		tipGwei = append(tipGwei, rpc.WeiToGwei(tip))
	}
	return effGwei, tipGwei
}

// averageBlockTime estimates seconds per block across the walked span from
// the boundary block timestamps. Fetch failures and clock skew degrade to
// zero instead of failing the profile.
func averageBlockTime(ctx context.Context, node NodeReader, head, start uint64) float64 {
	newest, err := node.BlockByNumber(ctx, head, false)
	if err != nil {
		return 0
	}
	oldest, err := node.BlockByNumber(ctx, start, false)
	if err != nil {
		return 0
	}

	span := head - start
	if span < 1 {
		span = 1
	}
	avg := (float64(newest.Timestamp) - float64(oldest.Timestamp)) / float64(span)
	if avg < 0 {
		return 0
	}
	return avg
}
