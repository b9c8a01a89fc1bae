package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	"YieldGuard/pkg/logger"
)

// SnapshotCollector periodically refreshes the configured chains through
// the coordinator, audits the snapshots, and warms histories for the
// largest pools. Every step is best-effort; the loop survives bad cycles.
type SnapshotCollector struct {
	coordinator *PoolCoordinator
	recorder    *SnapshotRecorder
	metrics     drepo.Metrics
	log         *logger.Logger
	interval    time.Duration
	chains      []string
	topPools    int
	workers     int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSnapshotCollector creates a collector.
func NewSnapshotCollector(
	coordinator *PoolCoordinator,
	recorder *SnapshotRecorder,
	metrics drepo.Metrics,
	log *logger.Logger,
	interval time.Duration,
	chains []string,
	topPools int,
	workers int,
) *SnapshotCollector {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if topPools <= 0 {
		topPools = 10
	}
	if workers <= 0 {
		workers = 8
	}
	return &SnapshotCollector{
		coordinator: coordinator,
		recorder:    recorder,
		metrics:     metrics,
		log:         log,
		interval:    interval,
		chains:      chains,
		topPools:    topPools,
		workers:     workers,
		done:        make(chan struct{}),
	}
}

// Start runs the collection loop until Shutdown or ctx cancellation. An
// initial cycle runs immediately so fresh processes serve warm data.
func (c *SnapshotCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	defer close(c.done)

	c.log.Info("snapshot collector started",
		logger.Duration("interval", c.interval),
		logger.Strings("chains", c.chains))

	c.collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// Shutdown stops the loop and waits for the current cycle to finish.
func (c *SnapshotCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SnapshotCollector) collect(ctx context.Context) {
	start := time.Now()

	for _, chain := range c.chains {
		if ctx.Err() != nil {
			return
		}

		records, _, err := c.coordinator.ListPools(ctx, models.PoolQuery{Chain: chain})
		if err != nil {
			c.metrics.RecordError("collector_fetch")
			c.log.Warn("snapshot refresh failed", logger.String("chain", chain), logger.Error(err))
			continue
		}

		c.recorder.RecordSnapshots(ctx, records)

		top := topByTVL(records, c.topPools)
		for _, rec := range top {
			c.metrics.RecordPoolTVL(rec.PoolID, rec.TVLUsd)
		}
		c.warmHistories(ctx, top)

		c.log.Debug("chain snapshot collected",
			logger.String("chain", chain),
			logger.Int("records", len(records)),
			logger.Int("warmed", len(top)))
	}

	c.metrics.RecordLatency("collect_cycle", time.Since(start).Seconds())
}

// warmHistories fetches series for the given pools through a bounded worker
// pool so one slow chart endpoint cannot serialize the whole cycle.
func (c *SnapshotCollector) warmHistories(ctx context.Context, records []models.PoolRecord) {
	if len(records) == 0 {
		return
	}

	workers := c.workers
	if workers > len(records) {
		workers = len(records)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for poolID := range jobs {
				if _, err := c.coordinator.History(ctx, poolID); err != nil {
					c.metrics.RecordError("collector_history")
					c.log.Debug("history warm failed", logger.String("pool_id", poolID), logger.Error(err))
				}
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- rec.PoolID:
		}
	}
	close(jobs)
	wg.Wait()
}

func topByTVL(records []models.PoolRecord, n int) []models.PoolRecord {
	sorted := make([]models.PoolRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TVLUsd > sorted[j].TVLUsd
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
