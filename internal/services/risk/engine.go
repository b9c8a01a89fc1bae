package risk

import (
	"math"
	"time"

	"YieldGuard/internal/domain/models"
	domsvc "YieldGuard/internal/domain/service"
	"YieldGuard/pkg/util"
)

const (
	volatilityCap        = 40.0
	drawdownCap          = 30.0
	maxTotal             = 100.0
	minDataPoints        = 2
	defaultHistory       = 90
	defaultFallbackScore = 75.0
)

// Option configures Engine.
type Option func(*Engine)

// Engine computes composite risk scores from TVL history. Scoring is pure:
// the same pool and series always produce the same score (modulo the clock
// stamp).
type Engine struct {
	maxHistoryDays        int
	insufficientDataScore float64
	now                   func() time.Time
}

var _ domsvc.RiskScorer = (*Engine)(nil)

// NewEngine creates a risk engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxHistoryDays:        defaultHistory,
		insufficientDataScore: defaultFallbackScore,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithMaxHistoryDays caps how many trailing daily points are scored.
func WithMaxHistoryDays(days int) Option {
	return func(e *Engine) {
		if days > 1 {
			e.maxHistoryDays = days
		}
	}
}

// WithInsufficientDataScore sets the conservative total assigned when the
// series is too short to measure.
func WithInsufficientDataScore(score float64) Option {
	return func(e *Engine) {
		if score >= 0 && score <= maxTotal {
			e.insufficientDataScore = score
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Score computes the composite risk score for a pool. Fewer than two daily
// points cannot be measured and yield the conservative fallback score with
// VERY_LOW confidence.
func (e *Engine) Score(pool *models.PoolRecord, series *models.HistoricalSeries) *models.RiskScore {
	poolID := ""
	tvl := 0.0
	if pool != nil {
		poolID = pool.PoolID
		tvl = pool.TVLUsd
	}
	if poolID == "" && series != nil {
		poolID = series.PoolID
	}

	points := series.Tail(e.maxHistoryDays)
	if len(points) < minDataPoints {
		return e.insufficientScore(poolID, tvl, len(points))
	}

	returns := DailyReturns(points)
	vol := AnnualizedVolatility(returns)
	dd := MaxDrawdown(points)
	confidence, _, _ := dataConfidence(points)

	volComponent := math.Min(volatilityCap, vol*100)
	ddComponent := math.Min(drawdownCap, dd*100)
	confPenalty := confidencePenalty(confidence)
	tvlPen := tvlPenalty(tvl)

	total := volComponent + ddComponent + confPenalty + tvlPen
	if total > maxTotal {
		total = maxTotal
	}
	if total < 0 {
		total = 0
	}

	var drivers []string
	if volComponent >= 25 {
		drivers = append(drivers, "high volatility")
	}
	if ddComponent >= 15 {
		drivers = append(drivers, "deep drawdown")
	}
	if confidence == models.ConfidenceLow || confidence == models.ConfidenceVeryLow {
		drivers = append(drivers, "shallow historical record")
	}
	if tvlPen >= 7 {
		drivers = append(drivers, "low absolute liquidity")
	}

	return &models.RiskScore{
		PoolID: poolID,
		Total:  total,
		Bucket: models.BucketForScore(total),
		Components: map[string]float64{
			models.ComponentVolatility:  volComponent,
			models.ComponentMaxDrawdown: ddComponent,
			models.ComponentConfidence:  confPenalty,
			models.ComponentTVL:         tvlPen,
		},
		AnnualizedVolatility: vol,
		MaxDrawdown:          dd,
		Confidence:           confidence,
		DataPoints:           len(points),
		Drivers:              drivers,
		ComputedAt:           e.now().UTC(),
	}
}

func (e *Engine) insufficientScore(poolID string, tvl float64, dataPoints int) *models.RiskScore {
	return &models.RiskScore{
		PoolID: poolID,
		Total:  e.insufficientDataScore,
		Bucket: models.BucketForScore(e.insufficientDataScore),
		Components: map[string]float64{
			models.ComponentVolatility:  0,
			models.ComponentMaxDrawdown: 0,
			models.ComponentConfidence:  confidencePenalty(models.ConfidenceVeryLow),
			models.ComponentTVL:         tvlPenalty(tvl),
		},
		AnnualizedVolatility: 0,
		MaxDrawdown:          0,
		Confidence:           models.ConfidenceVeryLow,
		DataPoints:           dataPoints,
		Drivers:              []string{"insufficient history"},
		ComputedAt:           e.now().UTC(),
	}
}

// dataConfidence grades the series on completeness over its date range and
// on how many gap runs it contains. Points are daily, so neighbors more
// than a day apart mark a gap.
func dataConfidence(points []models.HistoricalPoint) (models.ConfidenceLevel, float64, int) {
	if len(points) < minDataPoints {
		return models.ConfidenceVeryLow, 0, 0
	}

	span := util.DaysBetween(points[0].Date, points[len(points)-1].Date)
	completeness := 0.0
	if span > 0 {
		completeness = float64(len(points)) / float64(span)
	}

	gaps := 0
	for i := 1; i < len(points); i++ {
		if points[i].Date.Sub(points[i-1].Date) > 24*time.Hour {
			gaps++
		}
	}

	switch {
	case completeness >= 0.90 && gaps <= 2:
		return models.ConfidenceHigh, completeness, gaps
	case completeness >= 0.75 && gaps <= 5:
		return models.ConfidenceMedium, completeness, gaps
	case completeness >= 0.50:
		return models.ConfidenceLow, completeness, gaps
	default:
		return models.ConfidenceVeryLow, completeness, gaps
	}
}

func confidencePenalty(c models.ConfidenceLevel) float64 {
	switch c {
	case models.ConfidenceHigh:
		return 0
	case models.ConfidenceMedium:
		return 10
	case models.ConfidenceLow:
		return 15
	case models.ConfidenceVeryLow:
		return 20
	default:
		return 25
	}
}

func tvlPenalty(tvl float64) float64 {
	switch {
	case tvl < 50_000:
		return 10
	case tvl < 500_000:
		return 7
	case tvl < 5_000_000:
		return 4
	default:
		return 0
	}
}
