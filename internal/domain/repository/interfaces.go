package repository

import (
	"context"

	"YieldGuard/internal/domain/models"
)

// MarketSource exposes the upstream aggregator endpoints. Each method is a
// single connector; retrieval strategies compose them.
type MarketSource interface {
	Pools(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error)
	MirrorPools(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error)
	AllPools(ctx context.Context) ([]models.PoolRecord, error)
	Protocols(ctx context.Context) ([]models.ProtocolRef, error)
	History(ctx context.Context, poolID string) (*models.HistoricalSeries, error)
}

// FetchStrategy is one way of obtaining pool records. Strategies return
// their records or an error; the coordinator decides what happens next.
type FetchStrategy interface {
	Name() string
	Fetch(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error)
}

// Publisher emits underwriting events to the message bus.
type Publisher interface {
	PublishQuote(ctx context.Context, quote *models.InsuranceQuote) error
	PublishCall(ctx context.Context, params *models.CallParameters) error
	PublishSnapshots(ctx context.Context, records []models.PoolRecord) error
	Close() error
}

// AuditStore persists observations and issued quotes for later analysis.
type AuditStore interface {
	AppendSnapshots(ctx context.Context, records []models.PoolRecord) error
	AppendQuotes(ctx context.Context, quotes []*models.InsuranceQuote) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the pipeline.
type Metrics interface {
	RecordFetchAttempt(strategy, outcome string)
	RecordStrategyWin(strategy string)
	RecordCacheLookup(kind string, hit bool)
	RecordQuoteIssued(bucket string)
	RecordSinkWrite(sink, subject string)
	RecordError(kind string)
	RecordPoolTVL(pool string, tvl float64)
	RecordLatency(op string, seconds float64)
}
