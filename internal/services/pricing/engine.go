package pricing

import (
	"math"
	"time"

	"YieldGuard/internal/domain/models"
	domsvc "YieldGuard/internal/domain/service"
)

const (
	daysPerYear = 365

	volatilityLoad          = 1.3
	volatilityLoadThreshold = 25.0
	concentrationLoad       = 1.2

	defaultQuoteTTL           = 15 * time.Minute
	defaultMinCoverageRatio   = 0.10
	defaultConcentrationShare = 0.01
	defaultRateLow            = 0.001
	defaultRateMedium         = 0.003
	defaultRateHigh           = 0.008
)

// Option configures Engine.
type Option func(*Engine)

// Engine prices insurance quotes. Pricing is deterministic for fixed
// inputs; only CreatedAt/ValidUntil depend on the clock.
type Engine struct {
	quoteTTL           time.Duration
	minCoverageRatio   float64
	concentrationShare float64
	rateLow            float64
	rateMedium         float64
	rateHigh           float64
	now                func() time.Time
}

var _ domsvc.QuotePricer = (*Engine)(nil)

// NewEngine creates a pricing engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		quoteTTL:           defaultQuoteTTL,
		minCoverageRatio:   defaultMinCoverageRatio,
		concentrationShare: defaultConcentrationShare,
		rateLow:            defaultRateLow,
		rateMedium:         defaultRateMedium,
		rateHigh:           defaultRateHigh,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithQuoteTTL sets how long issued quotes stay valid.
func WithQuoteTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.quoteTTL = ttl
		}
	}
}

// WithMinCoverageRatio sets the coverage floor as a share of the deposit.
func WithMinCoverageRatio(ratio float64) Option {
	return func(e *Engine) {
		if ratio >= 0 && ratio <= 1 {
			e.minCoverageRatio = ratio
		}
	}
}

// WithConcentrationShare sets the deposit/TVL share above which the
// concentration load applies.
func WithConcentrationShare(share float64) Option {
	return func(e *Engine) {
		if share > 0 && share <= 1 {
			e.concentrationShare = share
		}
	}
}

// WithBaseRates overrides the per-bucket base daily premium rates.
func WithBaseRates(low, medium, high float64) Option {
	return func(e *Engine) {
		if low > 0 {
			e.rateLow = low
		}
		if medium > 0 {
			e.rateMedium = medium
		}
		if high > 0 {
			e.rateHigh = high
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

// Price computes an insurance quote for a deposit into a pool.
//
// premium = deposit x baseDailyRate(bucket) x tvlMult x volLoad x concLoad
// x timeFactor(lock). coverage = deposit x (1 - score/100), clamped to
// [minCoverageRatio x deposit, deposit].
func (e *Engine) Price(req *models.QuoteRequest, pool *models.PoolRecord, risk *models.RiskScore) (*models.InsuranceQuote, error) {
	if req == nil {
		return nil, models.InvalidInputError("request", "quote request is required")
	}
	if req.DepositAmount <= 0 || math.IsNaN(req.DepositAmount) || math.IsInf(req.DepositAmount, 0) {
		return nil, models.InvalidInputError("deposit_amount", "deposit amount must be a positive number")
	}
	if req.LockPeriodDays <= 0 {
		return nil, models.InvalidInputError("lock_period_days", "lock period must be positive")
	}
	if pool == nil {
		return nil, models.InvalidInputError("pool", "pool snapshot is required")
	}
	if risk == nil {
		return nil, models.InvalidInputError("risk", "risk score is required")
	}

	rate := e.baseDailyRate(risk.Bucket)
	rate *= tvlMultiplier(pool.TVLUsd)
	if risk.Components[models.ComponentVolatility] >= volatilityLoadThreshold {
		rate *= volatilityLoad
	}
	if pool.TVLUsd > 0 && req.DepositAmount > e.concentrationShare*pool.TVLUsd {
		rate *= concentrationLoad
	}

	premium := req.DepositAmount * rate * timeFactor(req.LockPeriodDays)

	coverage := req.DepositAmount * (1 - risk.Total/100)
	if floor := e.minCoverageRatio * req.DepositAmount; coverage < floor {
		coverage = floor
	}
	if coverage > req.DepositAmount {
		coverage = req.DepositAmount
	}

	now := e.now().UTC()
	return &models.InsuranceQuote{
		PoolID:            pool.PoolID,
		Chain:             pool.Chain,
		Project:           pool.Project,
		Symbol:            pool.Symbol,
		DepositAmount:     req.DepositAmount,
		LockPeriodDays:    req.LockPeriodDays,
		PremiumUsd:        premium,
		CoverageUsd:       coverage,
		CoverageRatio:     coverage / req.DepositAmount,
		AnnualPremiumRate: rate * daysPerYear,
		SuggestedLockDays: suggestedLock(risk.Bucket),
		Risk:              risk,
		Confidence:        quoteConfidence(pool.TVLUsd, risk.Confidence),
		CreatedAt:         now,
		ValidUntil:        now.Add(e.quoteTTL),
	}, nil
}

func (e *Engine) baseDailyRate(bucket models.RiskBucket) float64 {
	switch bucket {
	case models.BucketHigh:
		return e.rateHigh
	case models.BucketMedium:
		return e.rateMedium
	default:
		return e.rateLow
	}
}

func tvlMultiplier(tvl float64) float64 {
	switch {
	case tvl > 1_000_000:
		return 0.8
	case tvl > 100_000:
		return 0.9
	default:
		return 1.0
	}
}

func timeFactor(lockDays int) float64 {
	switch {
	case lockDays >= 90:
		return 0.7
	case lockDays >= 30:
		return 0.85
	default:
		return 1.0
	}
}

func suggestedLock(bucket models.RiskBucket) int {
	switch bucket {
	case models.BucketHigh:
		return 90
	case models.BucketMedium:
		return 60
	default:
		return 30
	}
}

func quoteConfidence(tvl float64, riskConf models.ConfidenceLevel) models.ConfidenceLevel {
	switch {
	case tvl > 100_000 && riskConf == models.ConfidenceHigh:
		return models.ConfidenceHigh
	case tvl > 10_000 && (riskConf == models.ConfidenceHigh || riskConf == models.ConfidenceMedium):
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
