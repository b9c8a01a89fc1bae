package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	pkgkafka "YieldGuard/pkg/kafka"
)

// QuoteIngestHandler consumes published quotes and lands them in the audit
// store. It closes the loop when quotes are audited through Kafka but the
// warehouse is ClickHouse.
type QuoteIngestHandler struct {
	topic   string
	store   drepo.AuditStore
	metrics drepo.Metrics
}

// NewQuoteIngestHandler creates a handler for the given topic.
func NewQuoteIngestHandler(topic string, store drepo.AuditStore, metrics drepo.Metrics) *QuoteIngestHandler {
	return &QuoteIngestHandler{topic: topic, store: store, metrics: metrics}
}

func (h *QuoteIngestHandler) Topic() string { return h.topic }

func (h *QuoteIngestHandler) Handle(ctx context.Context, b []byte) error {
	var quote models.InsuranceQuote
	if err := json.Unmarshal(b, &quote); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return err
	}
	if quote.PoolID == "" {
		h.metrics.RecordError("ingest_invalid")
		return fmt.Errorf("quote missing pool id")
	}

	start := time.Now()
	if err := h.store.AppendQuotes(ctx, []*models.InsuranceQuote{&quote}); err != nil {
		h.metrics.RecordError("ingest_store")
		return err
	}
	h.metrics.RecordSinkWrite(BackendClickHouse, "quote")
	h.metrics.RecordLatency("quote_ingest", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*QuoteIngestHandler)(nil)
