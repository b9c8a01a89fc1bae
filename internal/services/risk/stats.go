package risk

import (
	"math"

	"YieldGuard/internal/domain/models"
)

const daysPerYear = 365

// DailyReturns computes simple daily returns r_t = v_t/v_{t-1} - 1 over the
// TVL series. Pairs whose previous value is non-positive are skipped.
// Returns a slice of length <= len(points)-1, or nil if insufficient data.
func DailyReturns(points []models.HistoricalPoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].TVLUsd
		if prev <= 0 {
			continue
		}
		out = append(out, points[i].TVLUsd/prev-1)
	}
	return out
}

// SampleStdev computes the sample standard deviation (n-1 denominator).
// Returns 0 for fewer than two values.
func SampleStdev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)

	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	variance := ss / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// AnnualizedVolatility scales the daily return stdev to a yearly figure.
func AnnualizedVolatility(returns []float64) float64 {
	return SampleStdev(returns) * math.Sqrt(daysPerYear)
}

// MaxDrawdown computes the largest peak-to-trough TVL decline as a fraction
// in [0, 1] using a running peak.
func MaxDrawdown(points []models.HistoricalPoint) float64 {
	peak, maxDD := 0.0, 0.0
	for _, p := range points {
		if p.TVLUsd > peak {
			peak = p.TVLUsd
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.TVLUsd) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
