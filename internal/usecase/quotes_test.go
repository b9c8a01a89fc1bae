package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	"YieldGuard/internal/services/callparams"
	"YieldGuard/internal/services/pricing"
	"YieldGuard/internal/services/quality"
	"YieldGuard/internal/services/risk"
	"YieldGuard/pkg/cache"
)

type fakePublisher struct {
	mu        sync.Mutex
	quotes    []*models.InsuranceQuote
	calls     []*models.CallParameters
	snapshots int
}

func (p *fakePublisher) PublishQuote(ctx context.Context, quote *models.InsuranceQuote) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes = append(p.quotes, quote)
	return nil
}

func (p *fakePublisher) PublishCall(ctx context.Context, params *models.CallParameters) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, params)
	return nil
}

func (p *fakePublisher) PublishSnapshots(ctx context.Context, records []models.PoolRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots += len(records)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

var _ drepo.Publisher = (*fakePublisher)(nil)

type quoteHarness struct {
	uc       *QuoteUseCase
	strategy *fakeStrategy
	source   *fakeSource
	pub      *fakePublisher
	metrics  *fakeMetrics
}

// newQuoteHarness wires the full pipeline with real engines over fakes for
// transport and audit. The stable pool carries 90 days of smooth growth.
func newQuoteHarness(t *testing.T) *quoteHarness {
	t.Helper()

	stable := poolRecord("stable", "Ethereum", "lido", 1_050_000)
	stable.Symbol = "STETH"

	hot := poolRecord("hot", "Ethereum", "degen", 40_000)
	hot.APY = 5_000

	points := make([]models.HistoricalPoint, 0, 90)
	tvl := 1_000_000.0
	growth := math.Pow(1.05, 1.0/89)
	for i := 0; i < 90; i++ {
		points = append(points, models.HistoricalPoint{
			Date:   time.Date(2026, 5, 23, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			TVLUsd: tvl,
			APY:    3.8,
		})
		tvl *= growth
	}
	series := models.NewHistoricalSeries("stable", points)

	strategy := &fakeStrategy{name: StrategyChainFilter, records: []models.PoolRecord{stable, hot}}
	source := &fakeSource{history: map[string]*models.HistoricalSeries{"stable": series}}
	metrics := newFakeMetrics()
	pub := &fakePublisher{}
	log := testLogger(t)

	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	coordinator := NewPoolCoordinator(
		[]drepo.FetchStrategy{strategy}, source, quality.NewValidator(), mc, metrics, log,
		time.Minute, time.Minute,
	)
	recorder := NewSnapshotRecorder(BackendKafka, pub, nil, metrics, log)
	clock := func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }

	uc := NewQuoteUseCase(
		coordinator,
		risk.NewEngine(risk.WithClock(clock)),
		pricing.NewEngine(pricing.WithClock(clock)),
		callparams.NewBuilder(callparams.WithClock(clock)),
		recorder,
		mc,
		metrics,
		log,
		10*time.Minute,
		models.GradeC,
		ContractSet{
			YieldContractID:     "CCYIELDVAULT",
			InsuranceContractID: "CCINSURANCE",
			InsurancePercent:    10,
		},
	)

	return &quoteHarness{uc: uc, strategy: strategy, source: source, pub: pub, metrics: metrics}
}

func TestGetQuoteStablePool(t *testing.T) {
	h := newQuoteHarness(t)

	quote, err := h.uc.GetQuote(context.Background(), &models.QuoteRequest{
		PoolID:         "stable",
		DepositAmount:  1000,
		LockPeriodDays: 30,
	})
	require.NoError(t, err)

	// Smooth 90-day growth on a >1M pool: very low risk, discounted rate.
	assert.InDelta(t, 0.68, quote.PremiumUsd, 0.01)
	assert.GreaterOrEqual(t, quote.CoverageUsd, 700.0)
	assert.LessOrEqual(t, quote.CoverageUsd, 1000.0)
	require.NotNil(t, quote.Risk)
	assert.Equal(t, models.BucketVeryLow, quote.Risk.Bucket)
	assert.Less(t, quote.Risk.Total, 30.0)
	assert.Equal(t, models.ConfidenceHigh, quote.Confidence)

	assert.Equal(t, 1, h.metrics.count("quote:VERY_LOW"))
	require.Len(t, h.pub.quotes, 1, "issued quote is audited through the publisher")
}

func TestGetQuoteAppliesDefaultLockPeriod(t *testing.T) {
	h := newQuoteHarness(t)

	quote, err := h.uc.GetQuote(context.Background(), &models.QuoteRequest{
		PoolID:        "stable",
		DepositAmount: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, quote.LockPeriodDays)
}

func TestGetQuoteReusesCachedRiskScore(t *testing.T) {
	h := newQuoteHarness(t)
	req := &models.QuoteRequest{PoolID: "stable", DepositAmount: 1000, LockPeriodDays: 30}

	first, err := h.uc.GetQuote(context.Background(), req)
	require.NoError(t, err)
	second, err := h.uc.GetQuote(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, h.metrics.count("cache:risk:false"))
	assert.Equal(t, 1, h.metrics.count("cache:risk:true"))
	assert.Equal(t, first.PremiumUsd, second.PremiumUsd)
	assert.Equal(t, first.Risk.Total, second.Risk.Total)
}

func TestGetQuoteUnknownPool(t *testing.T) {
	h := newQuoteHarness(t)

	_, err := h.uc.GetQuote(context.Background(), &models.QuoteRequest{
		PoolID:         "missing",
		DepositAmount:  100,
		LockPeriodDays: 30,
	})
	assert.ErrorIs(t, err, models.ErrPoolNotFound)
}

func TestGetQuoteValidatesRequest(t *testing.T) {
	h := newQuoteHarness(t)

	_, err := h.uc.GetQuote(context.Background(), &models.QuoteRequest{PoolID: "stable"})
	assert.ErrorIs(t, err, models.ErrInvalidInput, "zero deposit fails validation")

	_, err = h.uc.GetQuote(context.Background(), &models.QuoteRequest{DepositAmount: 100, LockPeriodDays: 30})
	assert.ErrorIs(t, err, models.ErrInvalidInput, "missing pool id fails validation")

	_, err = h.uc.GetQuote(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestGetQuoteRefusesLowQualityData(t *testing.T) {
	h := newQuoteHarness(t)

	// The hot pool's 5000% APY fails the sanity ceiling, grading it D.
	_, err := h.uc.GetQuote(context.Background(), &models.QuoteRequest{
		PoolID:         "hot",
		DepositAmount:  100,
		LockPeriodDays: 30,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrQualityInsufficient)

	var derr *models.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "D", derr.Params["grade"])
}

func TestGetQuoteWithoutHistoryIsConservative(t *testing.T) {
	h := newQuoteHarness(t)
	h.source.historyErr = errors.New("chart endpoint down")

	quote, err := h.uc.GetQuote(context.Background(), &models.QuoteRequest{
		PoolID:         "stable",
		DepositAmount:  1000,
		LockPeriodDays: 30,
	})
	require.NoError(t, err)

	require.NotNil(t, quote.Risk)
	assert.Equal(t, 75.0, quote.Risk.Total)
	assert.Equal(t, models.ConfidenceVeryLow, quote.Risk.Confidence)
	assert.InDelta(t, 250.0, quote.CoverageUsd, 1e-9, "coverage shrinks with the fallback score")
	assert.Greater(t, quote.PremiumUsd, 0.68, "unknown history prices as high risk")
}

func TestPrepareDeposit(t *testing.T) {
	h := newQuoteHarness(t)

	params, err := h.uc.PrepareDeposit(context.Background(), "GDEPOSITOR", 250)
	require.NoError(t, err)

	assert.Equal(t, "CCYIELDVAULT", params.ContractID)
	assert.Equal(t, callparams.MethodDeposit, params.Method)
	require.Len(t, params.Args, 3)
	assert.Equal(t, "2500000000", params.Args[1].Value)
	assert.Equal(t, "10", params.Args[2].Value)
	require.Len(t, h.pub.calls, 1)
}

func TestPrepareBuyInsurance(t *testing.T) {
	h := newQuoteHarness(t)

	params, quote, err := h.uc.PrepareBuyInsurance(context.Background(), "GHOLDER", &models.QuoteRequest{
		PoolID:         "stable",
		DepositAmount:  1000,
		LockPeriodDays: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, "CCINSURANCE", params.ContractID)
	assert.Equal(t, callparams.MethodBuyInsurance, params.Method)
	require.Len(t, params.Args, 5)
	assert.Equal(t, "GHOLDER", params.Args[0].Value)
	assert.Equal(t, "30", params.Args[3].Value)
	require.NotNil(t, quote)
	assert.InDelta(t, 0.68, quote.PremiumUsd, 0.01)

	require.Len(t, h.pub.calls, 1)
	require.Len(t, h.pub.quotes, 1)
}
