package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	domsvc "YieldGuard/internal/domain/service"
	"YieldGuard/pkg/cache"
	"YieldGuard/pkg/logger"
)

// Cache key prefixes owned by the coordinator.
const (
	poolListKeyPrefix = "pools"
	poolKeyPrefix     = "pool"
	historyKeyPrefix  = "history"
)

// cachedPools is the cache payload for a pool listing: the records plus the
// quality report they graded at fetch time.
type cachedPools struct {
	Records []models.PoolRecord   `json:"records"`
	Report  *models.QualityReport `json:"report"`
}

// PoolCoordinator serves pool data through the strategy fallback chain and
// the TTL cache. Connector errors never escape it: they become recorded
// attempts, and only the typed kinds (DataUnavailable, PoolNotFound) reach
// callers.
type PoolCoordinator struct {
	strategies []drepo.FetchStrategy
	source     drepo.MarketSource
	validator  domsvc.RecordValidator
	cache      cache.Service
	metrics    drepo.Metrics
	log        *logger.Logger
	poolTTL    time.Duration
	historyTTL time.Duration
}

// NewPoolCoordinator creates a coordinator over the given strategy chain.
func NewPoolCoordinator(
	strategies []drepo.FetchStrategy,
	source drepo.MarketSource,
	validator domsvc.RecordValidator,
	cacheSvc cache.Service,
	metrics drepo.Metrics,
	log *logger.Logger,
	poolTTL time.Duration,
	historyTTL time.Duration,
) *PoolCoordinator {
	if poolTTL <= 0 {
		poolTTL = 5 * time.Minute
	}
	if historyTTL <= 0 {
		historyTTL = time.Hour
	}
	return &PoolCoordinator{
		strategies: strategies,
		source:     source,
		validator:  validator,
		cache:      cacheSvc,
		metrics:    metrics,
		log:        log,
		poolTTL:    poolTTL,
		historyTTL: historyTTL,
	}
}

// ListPools returns pool records matching the query plus their quality
// report, serving from cache when fresh.
func (c *PoolCoordinator) ListPools(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, *models.QualityReport, error) {
	key := listKey(q)

	var cached cachedPools
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		c.metrics.RecordCacheLookup("pools", true)
		return cached.Records, cached.Report, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn("pool cache read failed", logger.String("key", key), logger.Error(err))
	}
	c.metrics.RecordCacheLookup("pools", false)

	records, report, err := c.fetch(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	if err := c.cache.Set(ctx, key, cachedPools{Records: records, Report: report}, c.poolTTL); err != nil {
		c.log.Warn("pool cache write failed", logger.String("key", key), logger.Error(err))
	}
	return records, report, nil
}

// PoolByID resolves a single pool: cache, then a full fallback fetch.
func (c *PoolCoordinator) PoolByID(ctx context.Context, poolID string) (*models.PoolRecord, error) {
	if poolID == "" {
		return nil, models.InvalidInputError("pool_id", "pool id is required")
	}

	key := cache.GenerateKey(poolKeyPrefix, poolID)
	var rec models.PoolRecord
	if err := c.cache.Get(ctx, key, &rec); err == nil {
		c.metrics.RecordCacheLookup("pool", true)
		return &rec, nil
	}
	c.metrics.RecordCacheLookup("pool", false)

	records, _, err := c.fetch(ctx, models.PoolQuery{})
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].PoolID == poolID {
			found := records[i]
			if err := c.cache.Set(ctx, key, found, c.poolTTL); err != nil {
				c.log.Warn("pool cache write failed", logger.String("key", key), logger.Error(err))
			}
			return &found, nil
		}
	}
	return nil, models.PoolNotFoundError(poolID)
}

// History returns the daily series for a pool, cached for the history TTL.
func (c *PoolCoordinator) History(ctx context.Context, poolID string) (*models.HistoricalSeries, error) {
	if poolID == "" {
		return nil, models.InvalidInputError("pool_id", "pool id is required")
	}

	key := cache.GenerateKey(historyKeyPrefix, poolID)
	var series models.HistoricalSeries
	if err := c.cache.Get(ctx, key, &series); err == nil {
		c.metrics.RecordCacheLookup("history", true)
		return &series, nil
	}
	c.metrics.RecordCacheLookup("history", false)

	fetched, err := c.source.History(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, fetched, c.historyTTL); err != nil {
		c.log.Warn("history cache write failed", logger.String("key", key), logger.Error(err))
	}
	return fetched, nil
}

// PoolDetail fetches the pool record and its history concurrently. A failed
// history lookup degrades to a nil series; the record path decides success.
func (c *PoolCoordinator) PoolDetail(ctx context.Context, poolID string) (*models.PoolDetail, error) {
	var (
		wg      sync.WaitGroup
		record  *models.PoolRecord
		series  *models.HistoricalSeries
		recErr  error
		histErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		record, recErr = c.PoolByID(ctx, poolID)
	}()
	go func() {
		defer wg.Done()
		series, histErr = c.History(ctx, poolID)
	}()
	wg.Wait()

	if recErr != nil {
		return nil, recErr
	}
	if histErr != nil {
		c.metrics.RecordError("history_fetch")
		c.log.Warn("history unavailable, scoring will degrade",
			logger.String("pool_id", poolID), logger.Error(histErr))
		series = nil
	}

	return &models.PoolDetail{
		Record:  *record,
		History: series,
		Quality: c.validator.Validate([]models.PoolRecord{*record}),
	}, nil
}

// fetch walks the strategy chain and returns the first non-empty result.
// Every failure or empty pass is recorded as an attempt; exhausting the
// chain yields DataUnavailable carrying the attempt log.
func (c *PoolCoordinator) fetch(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, *models.QualityReport, error) {
	attempts := make([]models.StrategyAttempt, 0, len(c.strategies))

	for _, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		start := time.Now()
		records, err := strategy.Fetch(ctx, q)
		c.metrics.RecordLatency("fetch_"+strategy.Name(), time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			c.metrics.RecordFetchAttempt(strategy.Name(), "error")
			attempts = append(attempts, models.StrategyAttempt{Strategy: strategy.Name(), Reason: err.Error()})
			c.log.Warn("retrieval strategy failed",
				logger.String("strategy", strategy.Name()), logger.Error(err))
			continue
		}
		if len(records) == 0 {
			c.metrics.RecordFetchAttempt(strategy.Name(), "empty")
			attempts = append(attempts, models.StrategyAttempt{Strategy: strategy.Name(), Reason: "no records matched"})
			continue
		}

		c.metrics.RecordFetchAttempt(strategy.Name(), "success")
		c.metrics.RecordStrategyWin(strategy.Name())
		c.log.Info("retrieval strategy won",
			logger.String("strategy", strategy.Name()), logger.Int("records", len(records)))

		return records, c.validator.Validate(records), nil
	}

	c.metrics.RecordError("data_unavailable")
	return nil, nil, models.DataUnavailableError(attempts)
}

func listKey(q models.PoolQuery) string {
	return cache.GenerateKeyWithParams(poolListKeyPrefix, q.Chain, q.Project, q.Symbol, q.MinTVLUsd)
}
