// internal/stats/bucket.go
package stats

import (
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"
)

// Bucket summarizes one series of gwei samples. Fields are declared in
// alphabetical key order; the JSON payload contract sorts all object keys.
type Bucket struct {
	Count int     `json:"count"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// NewBucket computes the summary statistics for one series of samples,
// rounded to 4 decimal places. An empty series yields the zero Bucket.
func NewBucket(values []float64) Bucket {
	if len(values) == 0 {
		return Bucket{}
	}

	// These only error on empty input, which is handled above.
	p50, _ := mstats.Median(values)
	min, _ := mstats.Min(values)
	max, _ := mstats.Max(values)

	return Bucket{
		Count: len(values),
		Max:   RoundTo(max, 4),
		Min:   RoundTo(min, 4),
		P50:   RoundTo(p50, 4),
		P95:   RoundTo(NearestRank(values, 0.95), 4),
	}
}

// NearestRank returns the sample at index round(q * (n-1)) of the sorted
// series, ties at .5 rounding to the even index. The result is always a
// member of the series. q is clamped to [0, 1]; an empty series yields 0.
func NearestRank(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	// Sort a copy; callers hand us their live sample slices.
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.RoundToEven(q * float64(len(sorted)-1)))
	return sorted[idx]
}

// RoundTo rounds x to the given number of decimal places, ties to even.
func RoundTo(x float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.RoundToEven(x*shift) / shift
}
