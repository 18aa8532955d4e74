package fees

import (
	"context"
	"errors"
	"math"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/dmagro/eth-fee-profiler/internal/rpc"
	"github.com/dmagro/eth-fee-profiler/internal/stats"
)

// stubNode serves blocks from memory and records every fetch.
type stubNode struct {
	chainID    uint64
	head       uint64
	blocks     map[uint64]*rpc.ParsedBlock
	failBlock  uint64 // fetching this height fails when nonzero
	chainIDErr error
	headErr    error

	headCalls     int
	fullFetches   []uint64
	headerFetches []uint64
}

func (s *stubNode) ChainID(ctx context.Context) (uint64, error) {
	if s.chainIDErr != nil {
		return 0, s.chainIDErr
	}
	return s.chainID, nil
}

func (s *stubNode) BlockNumber(ctx context.Context) (uint64, error) {
	s.headCalls++
	if s.headErr != nil {
		return 0, s.headErr
	}
	return s.head, nil
}

func (s *stubNode) BlockByNumber(ctx context.Context, number uint64, fullTx bool) (*rpc.ParsedBlock, error) {
	if fullTx {
		s.fullFetches = append(s.fullFetches, number)
	} else {
		s.headerFetches = append(s.headerFetches, number)
	}
	if s.failBlock != 0 && number == s.failBlock {
		return nil, errors.New("boom")
	}
	block, ok := s.blocks[number]
	if !ok {
		return nil, errors.New("unknown block")
	}
	return block, nil
}

func wei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1_000_000_000))
}

func legacyTx(gasPriceGwei int64) rpc.ParsedTransaction {
	return rpc.ParsedTransaction{
		GasPrice:             wei(gasPriceGwei),
		MaxFeePerGas:         big.NewInt(0),
		MaxPriorityFeePerGas: big.NewInt(0),
	}
}

func dynamicTx(maxFeeGwei, maxPriorityGwei int64) rpc.ParsedTransaction {
	return rpc.ParsedTransaction{
		Type:                 2,
		GasPrice:             big.NewInt(0),
		MaxFeePerGas:         wei(maxFeeGwei),
		MaxPriorityFeePerGas: wei(maxPriorityGwei),
	}
}

func newBlock(number, timestamp uint64, baseFeeGwei int64, txs ...rpc.ParsedTransaction) *rpc.ParsedBlock {
	return &rpc.ParsedBlock{
		Number:        number,
		Timestamp:     timestamp,
		BaseFeePerGas: wei(baseFeeGwei),
		Transactions:  txs,
	}
}

// emptyChain builds contiguous empty blocks from first to last with a fixed
// block time.
func emptyChain(first, last, blockTime uint64) map[uint64]*rpc.ParsedBlock {
	blocks := make(map[uint64]*rpc.ParsedBlock)
	for n := first; n <= last; n++ {
		blocks[n] = newBlock(n, 1_000_000+n*blockTime, 10)
	}
	return blocks
}

// tickingClock advances a fixed amount per reading, making timings
// reproducible.
func tickingClock(step time.Duration) func() time.Time {
	current := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func TestCollectSingleBlock(t *testing.T) {
	node := &stubNode{
		chainID: 1,
		head:    100,
		blocks: map[uint64]*rpc.ParsedBlock{
			100: newBlock(100, 5000, 80, dynamicTx(100, 5), legacyTx(50)),
		},
	}

	got, err := Collect(context.Background(), node, Options{
		BlockCount: 1,
		Step:       1,
		Now:        tickingClock(250 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if got.HeadBlock != 100 || got.OldestBlock != 100 {
		t.Errorf("walk bounds = [%d, %d], want [100, 100]", got.OldestBlock, got.HeadBlock)
	}
	if got.SampledBlocks != 1 {
		t.Errorf("SampledBlocks = %d, want 1", got.SampledBlocks)
	}
	if got.BlockSpan != 1 || got.Step != 1 {
		t.Errorf("BlockSpan, Step = %d, %d, want 1, 1", got.BlockSpan, got.Step)
	}
	if got.ChainID != 1 || got.Network != "Ethereum Mainnet" {
		t.Errorf("chain = %d %q, want 1 %q", got.ChainID, got.Network, "Ethereum Mainnet")
	}

	// Dynamic tx pays min(100, 80+5) = 85 and tips 5; legacy pays 50, tips 0.
	wantEff := stats.Bucket{Count: 2, Max: 85, Min: 50, P50: 67.5, P95: 85}
	if got.EffectivePriceGwei != wantEff {
		t.Errorf("EffectivePriceGwei = %+v, want %+v", got.EffectivePriceGwei, wantEff)
	}
	wantTip := stats.Bucket{Count: 2, Max: 5, Min: 0, P50: 2.5, P95: 5}
	if got.TipGweiApprox != wantTip {
		t.Errorf("TipGweiApprox = %+v, want %+v", got.TipGweiApprox, wantTip)
	}
	wantBase := stats.Bucket{Count: 1, Max: 80, Min: 80, P50: 80, P95: 80}
	if got.BaseFeeGwei != wantBase {
		t.Errorf("BaseFeeGwei = %+v, want %+v", got.BaseFeeGwei, wantBase)
	}

	// Same head and oldest block, so no time has passed between them.
	if got.AvgBlockTimeSec != 0 {
		t.Errorf("AvgBlockTimeSec = %v, want 0", got.AvgBlockTimeSec)
	}
	// The injected clock advances 250ms between the two timing readings.
	if got.TimingSec != 0.25 {
		t.Errorf("TimingSec = %v, want 0.25", got.TimingSec)
	}
}

func TestCollectFeeExtraction(t *testing.T) {
	tests := []struct {
		name    string
		baseFee int64
		tx      rpc.ParsedTransaction
		wantEff float64
		wantTip float64
	}{
		{"dynamic fee pays base plus priority", 80, dynamicTx(100, 5), 85, 5},
		{"dynamic fee capped by max fee", 80, dynamicTx(84, 5), 84, 5},
		{"legacy below base fee keeps its price", 80, legacyTx(50), 50, 0},
		{"legacy above base fee tips the excess", 80, legacyTx(90), 90, 10},
		{"zero base fee chain", 0, legacyTx(30), 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &stubNode{
				chainID: 1,
				head:    10,
				blocks: map[uint64]*rpc.ParsedBlock{
					10: newBlock(10, 1000, tt.baseFee, tt.tx),
				},
			}

			got, err := Collect(context.Background(), node, Options{BlockCount: 1, Step: 1})
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if got.EffectivePriceGwei.P50 != tt.wantEff {
				t.Errorf("effective p50 = %v, want %v", got.EffectivePriceGwei.P50, tt.wantEff)
			}
			if got.TipGweiApprox.P50 != tt.wantTip {
				t.Errorf("tip p50 = %v, want %v", got.TipGweiApprox.P50, tt.wantTip)
			}
		})
	}
}

func TestCollectWalkOrder(t *testing.T) {
	node := &stubNode{chainID: 1, head: 100, blocks: emptyChain(80, 100, 12)}

	got, err := Collect(context.Background(), node, Options{BlockCount: 10, Step: 3})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	wantWalk := []uint64{100, 97, 94, 91}
	if !reflect.DeepEqual(node.fullFetches, wantWalk) {
		t.Errorf("sampled heights = %v, want %v", node.fullFetches, wantWalk)
	}
	if got.OldestBlock != 91 {
		t.Errorf("OldestBlock = %d, want 91", got.OldestBlock)
	}
	if got.SampledBlocks != 4 {
		t.Errorf("SampledBlocks = %d, want 4", got.SampledBlocks)
	}
	if got.BlockSpan != 10 {
		t.Errorf("BlockSpan = %d, want 10", got.BlockSpan)
	}

	// The span boundaries feed the block time estimate: (12 * 9) / 9.
	wantHeaders := []uint64{100, 91}
	if !reflect.DeepEqual(node.headerFetches, wantHeaders) {
		t.Errorf("header fetches = %v, want %v", node.headerFetches, wantHeaders)
	}
	if got.AvgBlockTimeSec != 12 {
		t.Errorf("AvgBlockTimeSec = %v, want 12", got.AvgBlockTimeSec)
	}

	// Empty blocks yield no transaction samples but still count base fees.
	if got.EffectivePriceGwei != (stats.Bucket{}) {
		t.Errorf("EffectivePriceGwei = %+v, want zero bucket", got.EffectivePriceGwei)
	}
	if got.BaseFeeGwei.Count != 4 {
		t.Errorf("BaseFeeGwei.Count = %d, want 4", got.BaseFeeGwei.Count)
	}
}

func TestCollectStepOneSamplesEveryBlock(t *testing.T) {
	node := &stubNode{chainID: 1, head: 100, blocks: emptyChain(90, 100, 12)}

	got, err := Collect(context.Background(), node, Options{BlockCount: 5, Step: 1})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got.SampledBlocks != 5 {
		t.Errorf("SampledBlocks = %d, want 5", got.SampledBlocks)
	}
	if !reflect.DeepEqual(node.fullFetches, []uint64{100, 99, 98, 97, 96}) {
		t.Errorf("sampled heights = %v", node.fullFetches)
	}
}

func TestCollectShortChain(t *testing.T) {
	node := &stubNode{chainID: 11155111, head: 3, blocks: emptyChain(0, 3, 12)}

	got, err := Collect(context.Background(), node, Options{BlockCount: 256, Step: 1})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if got.OldestBlock != 0 {
		t.Errorf("OldestBlock = %d, want 0", got.OldestBlock)
	}
	if got.SampledBlocks != 4 {
		t.Errorf("SampledBlocks = %d, want 4", got.SampledBlocks)
	}
	// The span reports what was requested, not what the chain could offer.
	if got.BlockSpan != 256 {
		t.Errorf("BlockSpan = %d, want 256", got.BlockSpan)
	}
}

func TestCollectHeadOverride(t *testing.T) {
	node := &stubNode{chainID: 1, head: 100, blocks: emptyChain(80, 100, 12)}

	head := uint64(95)
	got, err := Collect(context.Background(), node, Options{BlockCount: 2, Step: 1, HeadOverride: &head})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if got.HeadBlock != 95 {
		t.Errorf("HeadBlock = %d, want 95", got.HeadBlock)
	}
	if node.headCalls != 0 {
		t.Errorf("BlockNumber called %d times with an override in place", node.headCalls)
	}
}

func TestCollectHeadOverrideUpperBound(t *testing.T) {
	top := uint64(math.MaxUint64)

	t.Run("single block", func(t *testing.T) {
		node := &stubNode{chainID: 1, blocks: map[uint64]*rpc.ParsedBlock{
			top: newBlock(top, 5000, 10),
		}}

		head := top
		got, err := Collect(context.Background(), node, Options{BlockCount: 1, Step: 1, HeadOverride: &head})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if got.HeadBlock != top || got.OldestBlock != top {
			t.Errorf("walk bounds = [%d, %d], want [%d, %d]", got.OldestBlock, got.HeadBlock, top, top)
		}
		if got.SampledBlocks != 1 {
			t.Errorf("SampledBlocks = %d, want 1", got.SampledBlocks)
		}
		if !reflect.DeepEqual(node.fullFetches, []uint64{top}) {
			t.Errorf("sampled heights = %v, want [%d]", node.fullFetches, top)
		}
	})

	t.Run("two block span", func(t *testing.T) {
		node := &stubNode{chainID: 1, blocks: map[uint64]*rpc.ParsedBlock{
			top:     newBlock(top, 5012, 10),
			top - 1: newBlock(top-1, 5000, 10),
		}}

		head := top
		got, err := Collect(context.Background(), node, Options{BlockCount: 2, Step: 1, HeadOverride: &head})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if got.OldestBlock != top-1 {
			t.Errorf("OldestBlock = %d, want %d", got.OldestBlock, top-1)
		}
		if !reflect.DeepEqual(node.fullFetches, []uint64{top, top - 1}) {
			t.Errorf("sampled heights = %v, want [%d %d]", node.fullFetches, top, top-1)
		}
		if got.AvgBlockTimeSec != 12 {
			t.Errorf("AvgBlockTimeSec = %v, want 12", got.AvgBlockTimeSec)
		}
	})
}

func TestCollectValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero block count", Options{BlockCount: 0, Step: 1}},
		{"negative block count", Options{BlockCount: -5, Step: 1}},
		{"zero step", Options{BlockCount: 5, Step: 0}},
		{"negative step", Options{BlockCount: 5, Step: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &stubNode{chainID: 1, head: 100}
			_, err := Collect(context.Background(), node, tt.opts)

			var argErr *InvalidArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("error = %v, want *InvalidArgumentError", err)
			}
			if len(node.fullFetches) != 0 || node.headCalls != 0 {
				t.Error("node was contacted despite invalid options")
			}
		})
	}
}

func TestCollectFetchErrorAborts(t *testing.T) {
	node := &stubNode{chainID: 1, head: 100, blocks: emptyChain(80, 100, 12), failBlock: 97}

	_, err := Collect(context.Background(), node, Options{BlockCount: 10, Step: 3})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fetchErr.Block != 97 {
		t.Errorf("FetchError.Block = %d, want 97", fetchErr.Block)
	}
	// The walk stops at the failure, no further heights are touched.
	if !reflect.DeepEqual(node.fullFetches, []uint64{100, 97}) {
		t.Errorf("sampled heights = %v, want [100 97]", node.fullFetches)
	}
}

func TestCollectHeadError(t *testing.T) {
	headErr := errors.New("head probe down")
	node := &stubNode{chainID: 1, headErr: headErr}

	_, err := Collect(context.Background(), node, Options{BlockCount: 1, Step: 1})
	if !errors.Is(err, headErr) {
		t.Errorf("error = %v, want it to wrap the head failure", err)
	}
}

func TestCollectChainIDErrorAborts(t *testing.T) {
	chainIDErr := errors.New("chain id down")
	node := &stubNode{head: 100, blocks: emptyChain(90, 100, 12), chainIDErr: chainIDErr}

	_, err := Collect(context.Background(), node, Options{BlockCount: 2, Step: 1})
	if !errors.Is(err, chainIDErr) {
		t.Errorf("error = %v, want it to wrap the chain id failure", err)
	}
	if len(node.fullFetches) == 0 {
		t.Error("walk never ran; chain id is only resolved after sampling")
	}
}

func TestCollectBlockTimeDegradesToZero(t *testing.T) {
	t.Run("missing boundary header", func(t *testing.T) {
		// Step 4 over a 4-block span only walks the head; the oldest header
		// at 97 does not exist, so the estimate gives up quietly.
		node := &stubNode{chainID: 1, head: 100, blocks: map[uint64]*rpc.ParsedBlock{
			100: newBlock(100, 5000, 10),
		}}

		got, err := Collect(context.Background(), node, Options{BlockCount: 4, Step: 4})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if got.AvgBlockTimeSec != 0 {
			t.Errorf("AvgBlockTimeSec = %v, want 0", got.AvgBlockTimeSec)
		}
		if !reflect.DeepEqual(node.headerFetches, []uint64{100, 97}) {
			t.Errorf("header fetches = %v, want [100 97]", node.headerFetches)
		}
	})

	t.Run("timestamps running backwards", func(t *testing.T) {
		node := &stubNode{chainID: 1, head: 100, blocks: map[uint64]*rpc.ParsedBlock{
			100: newBlock(100, 1000, 10),
			99:  newBlock(99, 2000, 10),
		}}

		got, err := Collect(context.Background(), node, Options{BlockCount: 2, Step: 1})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if got.AvgBlockTimeSec != 0 {
			t.Errorf("AvgBlockTimeSec = %v, want 0", got.AvgBlockTimeSec)
		}
	})
}

func TestCollectDeterministic(t *testing.T) {
	build := func() *stubNode {
		blocks := emptyChain(90, 100, 12)
		blocks[100].Transactions = []rpc.ParsedTransaction{dynamicTx(40, 2), legacyTx(15)}
		blocks[98].Transactions = []rpc.ParsedTransaction{legacyTx(22)}
		return &stubNode{chainID: 137, head: 100, blocks: blocks}
	}
	opts := func() Options {
		return Options{BlockCount: 8, Step: 2, Now: tickingClock(100 * time.Millisecond)}
	}

	first, err := Collect(context.Background(), build(), opts())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	second, err := Collect(context.Background(), build(), opts())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("profiles differ across identical runs:\n%+v\n%+v", first, second)
	}
}

func TestCollectProgress(t *testing.T) {
	node := &stubNode{chainID: 1, head: 100, blocks: emptyChain(90, 100, 12)}

	var blocks []uint64
	var counts []int
	_, err := Collect(context.Background(), node, Options{
		BlockCount: 3,
		Step:       1,
		Progress: func(block uint64, sampled int) {
			blocks = append(blocks, block)
			counts = append(counts, sampled)
		},
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if !reflect.DeepEqual(blocks, []uint64{100, 99, 98}) {
		t.Errorf("progress blocks = %v, want [100 99 98]", blocks)
	}
	if !reflect.DeepEqual(counts, []int{1, 2, 3}) {
		t.Errorf("progress counts = %v, want [1 2 3]", counts)
	}
}
