package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	"YieldGuard/internal/services/quality"
	"YieldGuard/pkg/cache"
	"YieldGuard/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

type fakeStrategy struct {
	name    string
	records []models.PoolRecord
	err     error
	calls   int
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Fetch(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type fakeSource struct {
	mu           sync.Mutex
	history      map[string]*models.HistoricalSeries
	historyErr   error
	historyCalls int
}

func (f *fakeSource) Pools(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSource) MirrorPools(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSource) AllPools(ctx context.Context) ([]models.PoolRecord, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSource) Protocols(ctx context.Context) ([]models.ProtocolRef, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSource) History(ctx context.Context, poolID string) (*models.HistoricalSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if s, ok := f.history[poolID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no chart for %s", poolID)
}

type fakeMetrics struct {
	mu       sync.Mutex
	counters map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counters: make(map[string]int)}
}

func (m *fakeMetrics) bump(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
}

func (m *fakeMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

func (m *fakeMetrics) RecordFetchAttempt(strategy, outcome string) {
	m.bump("attempt:" + strategy + ":" + outcome)
}
func (m *fakeMetrics) RecordStrategyWin(strategy string) { m.bump("win:" + strategy) }

func (m *fakeMetrics) RecordCacheLookup(kind string, hit bool) {
	m.bump(fmt.Sprintf("cache:%s:%t", kind, hit))
}

func (m *fakeMetrics) RecordQuoteIssued(bucket string) { m.bump("quote:" + bucket) }

func (m *fakeMetrics) RecordSinkWrite(sink, subject string) { m.bump("sink:" + sink + ":" + subject) }

func (m *fakeMetrics) RecordError(kind string) { m.bump("error:" + kind) }

func (m *fakeMetrics) RecordPoolTVL(pool string, tvl float64) { m.bump("tvl:" + pool) }

func (m *fakeMetrics) RecordLatency(op string, seconds float64) {}

func poolRecord(id, chain, project string, tvl float64) models.PoolRecord {
	return models.PoolRecord{
		PoolID:     id,
		Chain:      chain,
		Project:    project,
		Symbol:     "TOK",
		TVLUsd:     tvl,
		APY:        3.5,
		ObservedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	}
}

func newCoordinator(t *testing.T, strategies []*fakeStrategy, source *fakeSource, metrics *fakeMetrics) *PoolCoordinator {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	chain := make([]drepo.FetchStrategy, 0, len(strategies))
	for _, s := range strategies {
		chain = append(chain, s)
	}
	if source == nil {
		source = &fakeSource{}
	}
	return NewPoolCoordinator(chain, source, quality.NewValidator(), mc, metrics, testLogger(t), time.Minute, time.Minute)
}

func TestListPoolsFallsBackToNextStrategy(t *testing.T) {
	broken := &fakeStrategy{name: StrategyChainFilter, err: fmt.Errorf("upstream 500")}
	winner := &fakeStrategy{name: StrategyMirrorEndpoint, records: []models.PoolRecord{
		poolRecord("a", "Ethereum", "lido", 1_000_000),
		poolRecord("b", "Ethereum", "aave-v3", 500_000),
	}}
	metrics := newFakeMetrics()
	c := newCoordinator(t, []*fakeStrategy{broken, winner}, nil, metrics)

	records, report, err := c.ListPools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.NoError(t, err)

	assert.Len(t, records, 2)
	require.NotNil(t, report)
	assert.True(t, report.Valid)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, winner.calls)
	assert.Equal(t, 1, metrics.count("attempt:chain_filter:error"))
	assert.Equal(t, 1, metrics.count("win:mirror_endpoint"))
}

func TestListPoolsServesFromCache(t *testing.T) {
	winner := &fakeStrategy{name: StrategyChainFilter, records: []models.PoolRecord{
		poolRecord("a", "Ethereum", "lido", 1_000_000),
	}}
	metrics := newFakeMetrics()
	c := newCoordinator(t, []*fakeStrategy{winner}, nil, metrics)

	_, _, err := c.ListPools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.NoError(t, err)
	records, report, err := c.ListPools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.NotNil(t, report)
	assert.Equal(t, 1, winner.calls, "second read must come from cache")
	assert.Equal(t, 1, metrics.count("cache:pools:true"))
	assert.Equal(t, 1, metrics.count("cache:pools:false"))
}

func TestListPoolsEmptyResultFallsThrough(t *testing.T) {
	empty := &fakeStrategy{name: StrategyChainFilter}
	winner := &fakeStrategy{name: StrategyFullScan, records: []models.PoolRecord{
		poolRecord("a", "Ethereum", "lido", 1_000_000),
	}}
	metrics := newFakeMetrics()
	c := newCoordinator(t, []*fakeStrategy{empty, winner}, nil, metrics)

	records, _, err := c.ListPools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, 1, metrics.count("attempt:chain_filter:empty"))
	assert.Equal(t, 1, metrics.count("win:full_scan"))
}

func TestListPoolsExhaustionCarriesAttempts(t *testing.T) {
	first := &fakeStrategy{name: StrategyChainFilter, err: fmt.Errorf("timeout")}
	second := &fakeStrategy{name: StrategyMirrorEndpoint, err: fmt.Errorf("mirror url not configured")}
	third := &fakeStrategy{name: StrategyFullScan}
	c := newCoordinator(t, []*fakeStrategy{first, second, third}, nil, newFakeMetrics())

	_, _, err := c.ListPools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	var derr *models.DomainError
	require.ErrorAs(t, err, &derr)
	attempts, ok := derr.Params["attempts"].([]models.StrategyAttempt)
	require.True(t, ok)
	require.Len(t, attempts, 3)
	assert.Equal(t, StrategyChainFilter, attempts[0].Strategy)
	assert.Equal(t, "timeout", attempts[0].Reason)
	assert.Equal(t, "no records matched", attempts[2].Reason)
}

func TestListPoolsCancellationAbortsWalk(t *testing.T) {
	strategy := &fakeStrategy{name: StrategyChainFilter, records: []models.PoolRecord{
		poolRecord("a", "Ethereum", "lido", 1_000_000),
	}}
	c := newCoordinator(t, []*fakeStrategy{strategy}, nil, newFakeMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.ListPools(ctx, models.PoolQuery{Chain: "Ethereum"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, strategy.calls)

	// Nothing was cached by the aborted walk.
	records, _, err := c.ListPools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, strategy.calls)
}

func TestPoolByIDCachesAndReportsMissing(t *testing.T) {
	strategy := &fakeStrategy{name: StrategyChainFilter, records: []models.PoolRecord{
		poolRecord("a", "Ethereum", "lido", 1_000_000),
		poolRecord("b", "Ethereum", "aave-v3", 500_000),
	}}
	c := newCoordinator(t, []*fakeStrategy{strategy}, nil, newFakeMetrics())

	rec, err := c.PoolByID(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.PoolID)
	assert.Equal(t, 1, strategy.calls)

	rec, err = c.PoolByID(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.PoolID)
	assert.Equal(t, 1, strategy.calls, "second lookup must come from cache")

	_, err = c.PoolByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrPoolNotFound)
}

func TestHistoryCaches(t *testing.T) {
	series := models.NewHistoricalSeries("a", []models.HistoricalPoint{
		{Date: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), TVLUsd: 1_000_000},
		{Date: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), TVLUsd: 1_010_000},
	})
	source := &fakeSource{history: map[string]*models.HistoricalSeries{"a": series}}
	c := newCoordinator(t, nil, source, newFakeMetrics())

	got, err := c.History(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	_, err = c.History(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, source.historyCalls)
}

func TestPoolDetailDegradesWhenHistoryFails(t *testing.T) {
	strategy := &fakeStrategy{name: StrategyChainFilter, records: []models.PoolRecord{
		poolRecord("a", "Ethereum", "lido", 1_000_000),
	}}
	source := &fakeSource{historyErr: errors.New("chart endpoint down")}
	c := newCoordinator(t, []*fakeStrategy{strategy}, source, newFakeMetrics())

	detail, err := c.PoolDetail(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, "a", detail.Record.PoolID)
	assert.Nil(t, detail.History)
	require.NotNil(t, detail.Quality)
	assert.True(t, detail.Quality.Valid)
}
