package trace

import (
	"sort"

	"github.com/neupims-sim/neupims-sim/core"
	"gonum.org/v1/gonum/stat"
)

// TileSummary aggregates the instruction count of every tile across a set
// of operations.
type TileSummary struct {
	Count int
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
}

// SummarizeTileInstructionCounts computes percentile statistics over the
// per-tile instruction counts of ops, using gonum/stat's empirical
// quantile estimator.
func SummarizeTileInstructionCounts(ops []core.Operation) TileSummary {
	var counts []float64
	for _, op := range ops {
		for _, t := range op.Tiles() {
			counts = append(counts, float64(len(t.Instructions)))
		}
	}
	if len(counts) == 0 {
		return TileSummary{}
	}
	sort.Float64s(counts)
	return TileSummary{
		Count: len(counts),
		Mean:  stat.Mean(counts, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, counts, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, counts, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, counts, nil),
	}
}
