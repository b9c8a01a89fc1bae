package usecase

import (
	"context"
	"time"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	domsvc "YieldGuard/internal/domain/service"
	"YieldGuard/pkg/cache"
	xhttp "YieldGuard/pkg/http"
	"YieldGuard/pkg/logger"
)

const riskKeyPrefix = "risk"

// ContractSet holds the settlement contract addressing used when preparing
// unsigned calls.
type ContractSet struct {
	YieldContractID     string
	InsuranceContractID string
	InsurancePercent    int
}

// QuoteUseCase runs the underwriting pipeline: resolve pool, gate on data
// quality, score risk (cached by series fingerprint), price, and audit.
type QuoteUseCase struct {
	coordinator *PoolCoordinator
	scorer      domsvc.RiskScorer
	pricer      domsvc.QuotePricer
	builder     domsvc.CallBuilder
	recorder    *SnapshotRecorder
	cache       cache.Service
	metrics     drepo.Metrics
	log         *logger.Logger
	riskTTL     time.Duration
	minGrade    models.Grade
	contracts   ContractSet
}

// NewQuoteUseCase creates the quote pipeline.
func NewQuoteUseCase(
	coordinator *PoolCoordinator,
	scorer domsvc.RiskScorer,
	pricer domsvc.QuotePricer,
	builder domsvc.CallBuilder,
	recorder *SnapshotRecorder,
	cacheSvc cache.Service,
	metrics drepo.Metrics,
	log *logger.Logger,
	riskTTL time.Duration,
	minGrade models.Grade,
	contracts ContractSet,
) *QuoteUseCase {
	if riskTTL <= 0 {
		riskTTL = 10 * time.Minute
	}
	if minGrade == "" {
		minGrade = models.GradeC
	}
	return &QuoteUseCase{
		coordinator: coordinator,
		scorer:      scorer,
		pricer:      pricer,
		builder:     builder,
		recorder:    recorder,
		cache:       cacheSvc,
		metrics:     metrics,
		log:         log,
		riskTTL:     riskTTL,
		minGrade:    minGrade,
		contracts:   contracts,
	}
}

// GetQuote prices insurance for a planned deposit. Quality below the
// configured grade refuses the quote rather than pricing bad data.
func (u *QuoteUseCase) GetQuote(ctx context.Context, req *models.QuoteRequest) (*models.InsuranceQuote, error) {
	if req == nil {
		return nil, models.InvalidInputError("request", "quote request is required")
	}
	if errs := xhttp.ValidateStruct(ctx, req); len(errs) > 0 {
		first := errs[0]
		return nil, models.InvalidInputError(first.Field, first.Message)
	}

	detail, err := u.coordinator.PoolDetail(ctx, req.PoolID)
	if err != nil {
		return nil, err
	}
	if detail.Quality != nil && !detail.Quality.Valid {
		u.metrics.RecordError("quality_gate")
		return nil, models.QualityInsufficientError(detail.Quality.Grade, u.minGrade)
	}

	risk := u.riskFor(ctx, &detail.Record, detail.History)

	quote, err := u.pricer.Price(req, &detail.Record, risk)
	if err != nil {
		return nil, err
	}

	u.metrics.RecordQuoteIssued(string(risk.Bucket))
	u.log.Info("quote issued",
		logger.String("pool_id", quote.PoolID),
		logger.String("bucket", string(risk.Bucket)),
		logger.Float64("premium_usd", quote.PremiumUsd),
		logger.Float64("coverage_usd", quote.CoverageUsd))

	u.recorder.RecordQuote(ctx, quote)
	return quote, nil
}

// PrepareDeposit shapes an unsigned yield-contract deposit call using the
// configured contract addressing.
func (u *QuoteUseCase) PrepareDeposit(ctx context.Context, depositor string, amountUsd float64) (*models.CallParameters, error) {
	params, err := u.builder.BuildDeposit(u.contracts.YieldContractID, depositor, amountUsd, u.contracts.InsurancePercent)
	if err != nil {
		return nil, err
	}

	u.recorder.RecordCall(ctx, params)
	return params, nil
}

// PrepareBuyInsurance quotes the request, then shapes the unsigned
// insurance purchase call for that quote.
func (u *QuoteUseCase) PrepareBuyInsurance(ctx context.Context, holder string, req *models.QuoteRequest) (*models.CallParameters, *models.InsuranceQuote, error) {
	quote, err := u.GetQuote(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	params, err := u.builder.BuildBuyInsurance(u.contracts.InsuranceContractID, holder, quote)
	if err != nil {
		return nil, nil, err
	}

	u.recorder.RecordCall(ctx, params)
	return params, quote, nil
}

// riskFor returns the cached score when the series fingerprint still
// matches, recomputing otherwise. Cache failures fall through to compute.
func (u *QuoteUseCase) riskFor(ctx context.Context, pool *models.PoolRecord, series *models.HistoricalSeries) *models.RiskScore {
	key := cache.GenerateKeyWithParams(riskKeyPrefix, pool.PoolID, series.Fingerprint())

	var cached models.RiskScore
	if err := u.cache.Get(ctx, key, &cached); err == nil {
		u.metrics.RecordCacheLookup("risk", true)
		return &cached
	}
	u.metrics.RecordCacheLookup("risk", false)

	risk := u.scorer.Score(pool, series)
	if err := u.cache.Set(ctx, key, risk, u.riskTTL); err != nil {
		u.log.Warn("risk cache write failed", logger.String("key", key), logger.Error(err))
	}
	return risk
}
