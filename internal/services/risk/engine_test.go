package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldGuard/internal/domain/models"
)

var testStart = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(poolID string, tvls []float64) *models.HistoricalSeries {
	points := make([]models.HistoricalPoint, 0, len(tvls))
	for i, tvl := range tvls {
		points = append(points, models.HistoricalPoint{
			Date:   testStart.AddDate(0, 0, i),
			TVLUsd: tvl,
			APY:    3.8,
		})
	}
	return models.NewHistoricalSeries(poolID, points)
}

func smoothGrowth(days int, startTVL, endTVL float64) []float64 {
	growth := math.Pow(endTVL/startTVL, 1/float64(days-1))
	tvls := make([]float64, 0, days)
	tvl := startTVL
	for i := 0; i < days; i++ {
		tvls = append(tvls, tvl)
		tvl *= growth
	}
	return tvls
}

func TestScoreSmoothGrowthScoresVeryLow(t *testing.T) {
	series := dailySeries("pool-a", smoothGrowth(90, 1_000_000, 1_050_000))
	pool := &models.PoolRecord{PoolID: "pool-a", TVLUsd: 1_050_000}

	score := NewEngine().Score(pool, series)

	assert.Less(t, score.Total, 30.0)
	assert.Equal(t, models.BucketVeryLow, score.Bucket)
	assert.Equal(t, models.ConfidenceHigh, score.Confidence)
	assert.InDelta(t, 0, score.MaxDrawdown, 1e-9)
	assert.Less(t, score.Components[models.ComponentVolatility], 1.0)
	assert.Equal(t, 90, score.DataPoints)
}

func TestScoreOscillationScoresHigh(t *testing.T) {
	tvls := make([]float64, 90)
	for i := range tvls {
		if i%2 == 0 {
			tvls[i] = 1_000_000
		} else {
			tvls[i] = 500_000
		}
	}
	series := dailySeries("pool-b", tvls)
	pool := &models.PoolRecord{PoolID: "pool-b", TVLUsd: 1_000_000}

	score := NewEngine().Score(pool, series)

	assert.GreaterOrEqual(t, score.Total, 70.0)
	assert.Equal(t, models.BucketHigh, score.Bucket)
	assert.Equal(t, 40.0, score.Components[models.ComponentVolatility], "volatility component is capped")
	assert.Equal(t, 30.0, score.Components[models.ComponentMaxDrawdown], "drawdown component is capped")
	assert.Contains(t, score.Drivers, "high volatility")
	assert.Contains(t, score.Drivers, "deep drawdown")
}

func TestScoreInsufficientDataFallsBackConservatively(t *testing.T) {
	engine := NewEngine()
	pool := &models.PoolRecord{PoolID: "pool-c", TVLUsd: 2_000_000}

	for name, series := range map[string]*models.HistoricalSeries{
		"nil series":   nil,
		"empty series": dailySeries("pool-c", nil),
		"single point": dailySeries("pool-c", []float64{1_000_000}),
	} {
		t.Run(name, func(t *testing.T) {
			score := engine.Score(pool, series)

			assert.Equal(t, 75.0, score.Total)
			assert.Equal(t, models.BucketHigh, score.Bucket)
			assert.Equal(t, models.ConfidenceVeryLow, score.Confidence)
			assert.Zero(t, score.AnnualizedVolatility)
			assert.Contains(t, score.Drivers, "insufficient history")
		})
	}
}

func TestScoreTrimsToMaxHistoryDays(t *testing.T) {
	series := dailySeries("pool-d", smoothGrowth(120, 1_000_000, 1_100_000))

	score := NewEngine(WithMaxHistoryDays(90)).Score(&models.PoolRecord{PoolID: "pool-d", TVLUsd: 1_100_000}, series)

	assert.Equal(t, 90, score.DataPoints)
}

func TestScoreIsDeterministic(t *testing.T) {
	series := dailySeries("pool-e", smoothGrowth(60, 800_000, 900_000))
	pool := &models.PoolRecord{PoolID: "pool-e", TVLUsd: 900_000}
	clock := func() time.Time { return testStart }
	engine := NewEngine(WithClock(clock))

	first := engine.Score(pool, series)
	second := engine.Score(pool, series)

	assert.Equal(t, first, second)
}

func TestScoreVolatilityFiniteAndNonNegative(t *testing.T) {
	tvls := []float64{100, 0, 50, 75, 0, 120, 80, 95}
	series := dailySeries("pool-f", tvls)

	score := NewEngine().Score(&models.PoolRecord{PoolID: "pool-f", TVLUsd: 95}, series)

	require.False(t, math.IsNaN(score.AnnualizedVolatility))
	require.False(t, math.IsInf(score.AnnualizedVolatility, 0))
	assert.GreaterOrEqual(t, score.AnnualizedVolatility, 0.0)
	assert.GreaterOrEqual(t, score.Total, 0.0)
	assert.LessOrEqual(t, score.Total, 100.0)
}

func TestDataConfidenceGrades(t *testing.T) {
	build := func(spanDays int, skip map[int]bool) []models.HistoricalPoint {
		var points []models.HistoricalPoint
		for i := 0; i < spanDays; i++ {
			if skip[i] {
				continue
			}
			points = append(points, models.HistoricalPoint{Date: testStart.AddDate(0, 0, i), TVLUsd: 100})
		}
		return points
	}

	tests := []struct {
		name string
		pts  []models.HistoricalPoint
		want models.ConfidenceLevel
	}{
		{"complete daily record", build(30, nil), models.ConfidenceHigh},
		{"high completeness too many gaps", build(60, map[int]bool{10: true, 20: true, 30: true}), models.ConfidenceMedium},
		{"medium completeness", build(30, map[int]bool{3: true, 7: true, 11: true, 15: true, 19: true}), models.ConfidenceMedium},
		{"low completeness", build(40, map[int]bool{2: true, 5: true, 8: true, 11: true, 14: true, 17: true, 20: true, 23: true, 26: true, 29: true, 32: true, 35: true}), models.ConfidenceLow},
		{"sparse record", build(30, map[int]bool{1: true, 2: true, 4: true, 5: true, 7: true, 8: true, 10: true, 11: true, 13: true, 14: true, 16: true, 17: true, 19: true, 20: true, 22: true, 23: true, 25: true, 26: true}), models.ConfidenceVeryLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := dataConfidence(tt.pts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSampleStdev(t *testing.T) {
	assert.InDelta(t, 1.29099, SampleStdev([]float64{1, 2, 3, 4}), 1e-4)
	assert.Zero(t, SampleStdev([]float64{5}))
	assert.Zero(t, SampleStdev(nil))
}

func TestDailyReturnsSkipsNonPositiveBase(t *testing.T) {
	points := []models.HistoricalPoint{
		{Date: testStart, TVLUsd: 100},
		{Date: testStart.AddDate(0, 0, 1), TVLUsd: 0},
		{Date: testStart.AddDate(0, 0, 2), TVLUsd: 50},
		{Date: testStart.AddDate(0, 0, 3), TVLUsd: 60},
	}

	returns := DailyReturns(points)

	// 100->0 counts; 0->50 is skipped; 50->60 counts.
	require.Len(t, returns, 2)
	assert.InDelta(t, -1.0, returns[0], 1e-9)
	assert.InDelta(t, 0.2, returns[1], 1e-9)
}

func TestMaxDrawdownRunningPeak(t *testing.T) {
	points := []models.HistoricalPoint{
		{TVLUsd: 100}, {TVLUsd: 120}, {TVLUsd: 60}, {TVLUsd: 90}, {TVLUsd: 150}, {TVLUsd: 75},
	}

	assert.InDelta(t, 0.5, MaxDrawdown(points), 1e-9)
	assert.Zero(t, MaxDrawdown(nil))
	assert.Zero(t, MaxDrawdown([]models.HistoricalPoint{{TVLUsd: 10}, {TVLUsd: 20}}))
}
