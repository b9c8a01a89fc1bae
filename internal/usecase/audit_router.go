package usecase

import (
	"context"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	"YieldGuard/pkg/logger"
)

// Audit backends.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// SnapshotRecorder routes observations, quotes and prepared calls to the
// configured audit backend. Every write is best-effort: failures are logged
// and counted, never returned, so a dead sink cannot block underwriting.
type SnapshotRecorder struct {
	backend string
	pub     drepo.Publisher
	store   drepo.AuditStore
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewSnapshotRecorder creates a recorder for the given backend. Either sink
// may be nil when disabled; writes to missing sinks are dropped silently.
func NewSnapshotRecorder(backend string, pub drepo.Publisher, store drepo.AuditStore, metrics drepo.Metrics, log *logger.Logger) *SnapshotRecorder {
	return &SnapshotRecorder{
		backend: backend,
		pub:     pub,
		store:   store,
		metrics: metrics,
		log:     log,
	}
}

// RecordSnapshots appends pool observations to the audit backend.
func (r *SnapshotRecorder) RecordSnapshots(ctx context.Context, records []models.PoolRecord) {
	if len(records) == 0 {
		return
	}

	var err error
	switch r.backend {
	case BackendKafka:
		if r.pub == nil {
			return
		}
		err = r.pub.PublishSnapshots(ctx, records)
	case BackendClickHouse:
		if r.store == nil {
			return
		}
		err = r.store.AppendSnapshots(ctx, records)
	default:
		return
	}

	if err != nil {
		r.metrics.RecordError("audit_snapshots")
		r.log.Warn("snapshot audit failed", logger.Int("records", len(records)), logger.Error(err))
		return
	}
	r.metrics.RecordSinkWrite(r.backend, "snapshots")
}

// RecordQuote appends an issued quote to the audit backend.
func (r *SnapshotRecorder) RecordQuote(ctx context.Context, quote *models.InsuranceQuote) {
	if quote == nil {
		return
	}

	var err error
	switch r.backend {
	case BackendKafka:
		if r.pub == nil {
			return
		}
		err = r.pub.PublishQuote(ctx, quote)
	case BackendClickHouse:
		if r.store == nil {
			return
		}
		err = r.store.AppendQuotes(ctx, []*models.InsuranceQuote{quote})
	default:
		return
	}

	if err != nil {
		r.metrics.RecordError("audit_quote")
		r.log.Warn("quote audit failed", logger.String("pool_id", quote.PoolID), logger.Error(err))
		return
	}
	r.metrics.RecordSinkWrite(r.backend, "quote")
}

// RecordCall publishes a prepared call-parameter set. Calls are events, not
// audit rows, so they always go through the publisher when one is present.
func (r *SnapshotRecorder) RecordCall(ctx context.Context, params *models.CallParameters) {
	if params == nil || r.pub == nil {
		return
	}

	if err := r.pub.PublishCall(ctx, params); err != nil {
		r.metrics.RecordError("audit_call")
		r.log.Warn("call publish failed",
			logger.String("contract_id", params.ContractID),
			logger.String("method", params.Method),
			logger.Error(err))
		return
	}
	r.metrics.RecordSinkWrite(BackendKafka, "call")
}
