package pricing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldGuard/internal/domain/models"
)

var quoteClock = func() time.Time {
	return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
}

func lowRiskScore() *models.RiskScore {
	return &models.RiskScore{
		PoolID: "pool-a",
		Total:  4,
		Bucket: models.BucketVeryLow,
		Components: map[string]float64{
			models.ComponentVolatility:  0,
			models.ComponentMaxDrawdown: 0,
			models.ComponentConfidence:  0,
			models.ComponentTVL:         4,
		},
		Confidence: models.ConfidenceHigh,
	}
}

func highRiskScore() *models.RiskScore {
	return &models.RiskScore{
		PoolID: "pool-b",
		Total:  74,
		Bucket: models.BucketHigh,
		Components: map[string]float64{
			models.ComponentVolatility:  40,
			models.ComponentMaxDrawdown: 30,
			models.ComponentConfidence:  0,
			models.ComponentTVL:         4,
		},
		Confidence: models.ConfidenceHigh,
	}
}

func TestPriceStableLargePool(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	req := &models.QuoteRequest{PoolID: "pool-a", DepositAmount: 1000, LockPeriodDays: 30}
	pool := &models.PoolRecord{PoolID: "pool-a", Chain: "Ethereum", Project: "lido", Symbol: "STETH", TVLUsd: 1_050_000}

	quote, err := engine.Price(req, pool, lowRiskScore())
	require.NoError(t, err)

	// 1000 x 0.001 x 0.8 (TVL > 1M) x 0.85 (30d lock).
	assert.InDelta(t, 0.68, quote.PremiumUsd, 1e-9)
	assert.InDelta(t, 960, quote.CoverageUsd, 1e-9)
	assert.InDelta(t, 0.96, quote.CoverageRatio, 1e-9)
	assert.Equal(t, models.ConfidenceHigh, quote.Confidence)
	assert.Equal(t, 30, quote.SuggestedLockDays)
	assert.Equal(t, quoteClock().Add(15*time.Minute), quote.ValidUntil)
}

func TestPriceHighRiskCostsMore(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	req := &models.QuoteRequest{PoolID: "p", DepositAmount: 1000, LockPeriodDays: 30}
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 1_050_000}

	low, err := engine.Price(req, pool, lowRiskScore())
	require.NoError(t, err)
	high, err := engine.Price(req, pool, highRiskScore())
	require.NoError(t, err)

	// 8x the base rate plus the volatility load.
	assert.Greater(t, high.PremiumUsd, 5*low.PremiumUsd)
	assert.Equal(t, 90, high.SuggestedLockDays)
	assert.Less(t, high.CoverageUsd, low.CoverageUsd)
}

func TestPriceCoverageBounds(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	req := &models.QuoteRequest{PoolID: "p", DepositAmount: 1000, LockPeriodDays: 30}
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 500_000}

	for _, total := range []float64{0, 10, 50, 75, 95, 100} {
		t.Run(fmt.Sprintf("score %.0f", total), func(t *testing.T) {
			risk := &models.RiskScore{Total: total, Bucket: models.BucketForScore(total), Confidence: models.ConfidenceHigh}

			quote, err := engine.Price(req, pool, risk)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, quote.CoverageUsd, 0.10*req.DepositAmount, "coverage never drops below the floor")
			assert.LessOrEqual(t, quote.CoverageUsd, req.DepositAmount, "coverage never exceeds the deposit")
			assert.GreaterOrEqual(t, quote.PremiumUsd, 0.0)
		})
	}
}

func TestPriceDeterministicModuloClock(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	req := &models.QuoteRequest{PoolID: "p", DepositAmount: 2500, LockPeriodDays: 45}
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 300_000}
	risk := lowRiskScore()

	first, err := engine.Price(req, pool, risk)
	require.NoError(t, err)
	second, err := engine.Price(req, pool, risk)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPriceTimeFactors(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 50_000}
	risk := lowRiskScore()

	premiumFor := func(lockDays int) float64 {
		quote, err := engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 100, LockPeriodDays: lockDays}, pool, risk)
		require.NoError(t, err)
		return quote.PremiumUsd
	}

	short := premiumFor(7)
	medium := premiumFor(30)
	long := premiumFor(90)

	assert.InDelta(t, 0.100, short, 1e-9)
	assert.InDelta(t, 0.085, medium, 1e-9)
	assert.InDelta(t, 0.070, long, 1e-9)
}

func TestPriceConcentrationLoad(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 50_000}
	risk := lowRiskScore()

	small, err := engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 400, LockPeriodDays: 30}, pool, risk)
	require.NoError(t, err)
	// 600 > 1% of 50k.
	large, err := engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 600, LockPeriodDays: 30}, pool, risk)
	require.NoError(t, err)

	smallRate := small.PremiumUsd / small.DepositAmount
	largeRate := large.PremiumUsd / large.DepositAmount
	assert.InDelta(t, 1.2, largeRate/smallRate, 1e-9)
}

func TestPriceVolatilityLoad(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	req := &models.QuoteRequest{PoolID: "p", DepositAmount: 1000, LockPeriodDays: 30}
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 50_000}

	calm := &models.RiskScore{
		Total: 40, Bucket: models.BucketLow, Confidence: models.ConfidenceHigh,
		Components: map[string]float64{models.ComponentVolatility: 10},
	}
	turbulent := &models.RiskScore{
		Total: 40, Bucket: models.BucketLow, Confidence: models.ConfidenceHigh,
		Components: map[string]float64{models.ComponentVolatility: 30},
	}

	base, err := engine.Price(req, pool, calm)
	require.NoError(t, err)
	loaded, err := engine.Price(req, pool, turbulent)
	require.NoError(t, err)

	assert.InDelta(t, 1.3, loaded.PremiumUsd/base.PremiumUsd, 1e-9)
}

func TestPriceQuoteConfidenceTiers(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	req := &models.QuoteRequest{PoolID: "p", DepositAmount: 100, LockPeriodDays: 30}

	tests := []struct {
		name     string
		tvl      float64
		riskConf models.ConfidenceLevel
		want     models.ConfidenceLevel
	}{
		{"deep pool strong history", 250_000, models.ConfidenceHigh, models.ConfidenceHigh},
		{"deep pool patchy history", 250_000, models.ConfidenceMedium, models.ConfidenceMedium},
		{"mid pool strong history", 50_000, models.ConfidenceHigh, models.ConfidenceMedium},
		{"shallow pool", 5_000, models.ConfidenceHigh, models.ConfidenceLow},
		{"deep pool weak history", 250_000, models.ConfidenceVeryLow, models.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := &models.PoolRecord{PoolID: "p", TVLUsd: tt.tvl}
			risk := &models.RiskScore{Total: 20, Bucket: models.BucketVeryLow, Confidence: tt.riskConf}

			quote, err := engine.Price(req, pool, risk)
			require.NoError(t, err)
			assert.Equal(t, tt.want, quote.Confidence)
		})
	}
}

func TestPriceRejectsInvalidInput(t *testing.T) {
	engine := NewEngine()
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 100_000}
	risk := lowRiskScore()

	_, err := engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 0, LockPeriodDays: 30}, pool, risk)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: -50, LockPeriodDays: 30}, pool, risk)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 100, LockPeriodDays: 0}, pool, risk)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = engine.Price(nil, pool, risk)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 100, LockPeriodDays: 30}, nil, risk)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPriceAnnualRateExcludesTimeFactor(t *testing.T) {
	engine := NewEngine(WithClock(quoteClock))
	pool := &models.PoolRecord{PoolID: "p", TVLUsd: 50_000}
	risk := lowRiskScore()

	short, err := engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 100, LockPeriodDays: 7}, pool, risk)
	require.NoError(t, err)
	long, err := engine.Price(&models.QuoteRequest{PoolID: "p", DepositAmount: 100, LockPeriodDays: 90}, pool, risk)
	require.NoError(t, err)

	assert.Equal(t, short.AnnualPremiumRate, long.AnnualPremiumRate)
	assert.InDelta(t, 0.001*365, short.AnnualPremiumRate, 1e-9)
}
