package repository

import (
	"context"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	pkgkafka "YieldGuard/pkg/kafka"
	"YieldGuard/pkg/logger"
)

// KafkaPublisher streams quotes, prepared calls and pool snapshots to
// Kafka. It doubles as the sink for aggregated log batches.
type KafkaPublisher struct {
	producer       *pkgkafka.Producer
	quotesTopic    string
	callsTopic     string
	snapshotsTopic string
}

var (
	_ drepo.Publisher  = (*KafkaPublisher)(nil)
	_ logger.Publisher = (*KafkaPublisher)(nil)
)

// NewKafkaPublisher creates a Kafka publisher over the shared producer.
func NewKafkaPublisher(producer *pkgkafka.Producer, quotesTopic, callsTopic, snapshotsTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer:       producer,
		quotesTopic:    quotesTopic,
		callsTopic:     callsTopic,
		snapshotsTopic: snapshotsTopic,
	}
}

// PublishQuote emits an issued quote keyed by pool so per-pool ordering
// survives partitioning.
func (p *KafkaPublisher) PublishQuote(ctx context.Context, quote *models.InsuranceQuote) error {
	return p.producer.Publish(ctx, p.quotesTopic, []byte(quote.PoolID), quote)
}

// PublishCall emits a prepared contract invocation keyed by contract.
func (p *KafkaPublisher) PublishCall(ctx context.Context, params *models.CallParameters) error {
	return p.producer.Publish(ctx, p.callsTopic, []byte(params.ContractID), params)
}

// PublishSnapshots emits one message per pool observation.
func (p *KafkaPublisher) PublishSnapshots(ctx context.Context, records []models.PoolRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		msgs[i] = pkgkafka.Message{Key: []byte(r.PoolID), Value: r}
	}
	return p.producer.PublishBatch(ctx, p.snapshotsTopic, msgs)
}

// PublishMessage satisfies the log collector sink.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
