package srs

import (
	"math"
	"math/rand"
)

type fuzzRange struct {
	start, end float64
	factor     float64
}

var fuzzRanges = []fuzzRange{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

func fuzzDelta(interval float64) float64 {
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(interval, r.end)-r.start, 0)
	}
	return delta
}

// fuzzDays spreads an interval of at least 3 days over a window that
// widens with the interval, so cards created together do not stay bunched.
func fuzzDays(days, maxInterval int, rng *rand.Rand) int {
	if float64(days) < 2.5 {
		return days
	}
	ivl := float64(days)
	delta := fuzzDelta(ivl)

	lo := max(2, int(math.Round(ivl-delta)))
	hi := min(int(math.Round(ivl+delta)), maxInterval)
	lo = min(lo, hi)

	return min(lo+rng.Intn(hi-lo+1), maxInterval)
}
