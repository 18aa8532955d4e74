package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/dmagro/eth-fee-profiler/internal/fees"
	"github.com/dmagro/eth-fee-profiler/internal/rpc"
	"github.com/dmagro/eth-fee-profiler/internal/stats"
)

// Colors for terminal rendering.
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// DisableColors turns off color output (for JSON mode or non-TTY).
func DisableColors() {
	color.NoColor = true
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// RenderProfileTerminal prints the human summary of a profile.
func RenderProfileTerminal(w io.Writer, p *fees.Profile) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s (chain ID %d)\n", bold(p.Network), p.ChainID)
	fmt.Fprintf(w, "  Head block:      %s\n", cyan(rpc.FormatNumber(p.HeadBlock)))
	fmt.Fprintf(w, "  Oldest sampled:  %s  (span %d, step %d)\n",
		cyan(rpc.FormatNumber(p.OldestBlock)), p.BlockSpan, p.Step)
	fmt.Fprintf(w, "  Sampled blocks:  %d\n", p.SampledBlocks)
	fmt.Fprintf(w, "  Avg block time:  %gs\n", p.AvgBlockTimeSec)
	fmt.Fprintf(w, "  Profile time:    %gs\n", p.TimingSec)
	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Fee Percentiles (gwei)"))

	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Series", "p50", "p95", "Min", "Max", "Samples").
		WithHeaderFormatter(headerFmt).
		WithWriter(w)

	addBucketRow(tbl, "Base fee", p.BaseFeeGwei)
	addBucketRow(tbl, "Effective price", p.EffectivePriceGwei)
	addBucketRow(tbl, "Priority tip", p.TipGweiApprox)

	tbl.Print()
	fmt.Fprintln(w)
}

func addBucketRow(tbl table.Table, name string, b stats.Bucket) {
	if b.Count == 0 {
		tbl.AddRow(name, "-", "-", "-", "-", yellow("0"))
		return
	}
	tbl.AddRow(name,
		formatGwei(b.P50), formatGwei(b.P95), formatGwei(b.Min), formatGwei(b.Max), b.Count)
}

// formatGwei prints to the same 4 decimal places the profile rounds to.
func formatGwei(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// ProbeRow is one endpoint's outcome for the probe table.
type ProbeRow struct {
	Endpoint string
	Network  string
	ChainID  uint64
	Head     uint64
	Latency  time.Duration
	Err      error
}

// RenderProbeTerminal prints one row per endpoint plus a head drift note
// when more than one endpoint answered.
func RenderProbeTerminal(w io.Writer, rows []ProbeRow) {
	fmt.Fprintln(w)

	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Endpoint", "Status", "Network", "Head", "Latency").
		WithHeaderFormatter(headerFmt).
		WithWriter(w)

	var heads []uint64
	for _, row := range rows {
		if row.Err != nil {
			tbl.AddRow(row.Endpoint, red("DOWN"), "-", "-", "-")
			continue
		}
		heads = append(heads, row.Head)
		tbl.AddRow(row.Endpoint, green("UP"), row.Network,
			rpc.FormatNumber(row.Head), formatLatency(row.Latency))
	}

	tbl.Print()
	fmt.Fprintln(w)

	if len(heads) > 1 {
		fmt.Fprintf(w, "Head agreement: %s\n\n", assessHeadDrift(headSpread(heads)))
	}
}

// headSpread is the gap between the highest and lowest reported heads.
func headSpread(heads []uint64) uint64 {
	min, max := heads[0], heads[0]
	for _, h := range heads[1:] {
		if h < min {
			min = h
		}
		if h > max {
			max = h
		}
	}
	return max - min
}

func assessHeadDrift(delta uint64) string {
	if delta == 0 {
		return green("✓ In sync")
	}
	if delta <= 2 {
		return yellow(fmt.Sprintf("⚠ %d block(s) apart (~%ds)", delta, delta*12))
	}
	return red(fmt.Sprintf("✗ Diverged (%d blocks / ~%ds apart)", delta, delta*12))
}

func formatLatency(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
