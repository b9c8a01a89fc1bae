package di

import (
	"context"
	"fmt"
	"time"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
	domsvc "YieldGuard/internal/domain/service"
	"YieldGuard/internal/handler/api"
	internalrepo "YieldGuard/internal/repository"
	"YieldGuard/internal/service/breaker"
	"YieldGuard/internal/service/llama"
	"YieldGuard/internal/service/ratelimit"
	"YieldGuard/internal/services/callparams"
	"YieldGuard/internal/services/pricing"
	"YieldGuard/internal/services/quality"
	"YieldGuard/internal/services/risk"
	"YieldGuard/internal/usecase"
	"YieldGuard/pkg/cache"
	pkgch "YieldGuard/pkg/clickhouse"
	"YieldGuard/pkg/config"
	xhttp "YieldGuard/pkg/http"
	pkgkafka "YieldGuard/pkg/kafka"
	"YieldGuard/pkg/logger"
	"YieldGuard/pkg/metrics"
	"YieldGuard/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideCache creates the cache backend selected by configuration.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxEntries)), nil
	case "redis":
		return newRedisCache(cfg)
	case "layered":
		rc, err := newRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MaxEntries)), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func newRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideClickHouseClient creates a ClickHouse client with the audit schema
// applied. Returns nil when the sink is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := internalrepo.SchemaStatements(cfg.ClickHouse.Database, cfg.ClickHouse.SnapshotsTable, cfg.ClickHouse.QuotesTable)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideAuditStore creates the ClickHouse audit store, or nil when the
// sink is disabled.
func ProvideAuditStore(chClient *pkgch.Client, cfg *config.Config) drepo.AuditStore {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseAuditStore(
		chClient.DB(),
		cfg.ClickHouse.Database+"."+cfg.ClickHouse.SnapshotsTable,
		cfg.ClickHouse.Database+"."+cfg.ClickHouse.QuotesTable,
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvidePublisher creates the Kafka event publisher, or nil when the
// producer is disabled.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer,
		cfg.Kafka.QuotesTopic, cfg.Kafka.CallsTopic, cfg.Kafka.SnapshotsTopic)
}

// ProvideKafkaConsumer creates the audit ingest consumer. The bridge only
// runs when both the Kafka source and the ClickHouse destination exist.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideQuoteIngestHandler bridges the quotes topic into the audit store.
func ProvideQuoteIngestHandler(store drepo.AuditStore, m drepo.Metrics, cfg *config.Config) *usecase.QuoteIngestHandler {
	if store == nil {
		return nil
	}
	return usecase.NewQuoteIngestHandler(cfg.Kafka.QuotesTopic, store, m)
}

// ProvideRateLimiter creates the per-host upstream rate limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Upstream.RateLimitRPS, cfg.Upstream.RateLimitBurst)
}

// ProvideBreakers creates the per-host circuit breaker registry.
func ProvideBreakers(cfg *config.Config) *breaker.Registry {
	return breaker.New(cfg.Upstream.BreakerFailures, cfg.Upstream.BreakerCooldown)
}

// ProvideMarketSource creates the upstream yields client.
func ProvideMarketSource(cfg *config.Config, limiter *ratelimit.Limiter, breakers *breaker.Registry, log *logger.Logger) drepo.MarketSource {
	opts := []llama.Option{
		llama.WithBaseURL(cfg.Upstream.BaseURL),
		llama.WithProtocolsURL(cfg.Upstream.ProtocolsURL),
		llama.WithTimeout(cfg.Upstream.RequestTimeout),
		llama.WithRetry(cfg.Upstream.RetryMax, cfg.Upstream.RetryWaitMin, cfg.Upstream.RetryWaitMax),
		llama.WithRateLimiter(limiter),
		llama.WithBreakers(breakers),
		llama.WithLogger(log),
		llama.WithUserAgent(cfg.Upstream.UserAgent),
	}
	if cfg.Upstream.MirrorURL != "" {
		opts = append(opts, llama.WithMirrorURL(cfg.Upstream.MirrorURL))
	}
	return llama.New(opts...)
}

// ProvideStrategies builds the ordered retrieval strategy chain.
func ProvideStrategies(source drepo.MarketSource, cfg *config.Config) []drepo.FetchStrategy {
	return usecase.DefaultStrategies(source, cfg.Upstream.MaxProtocolFetches)
}

// ProvideValidator creates the record quality validator.
func ProvideValidator(cfg *config.Config) domsvc.RecordValidator {
	return quality.NewValidator(
		quality.WithMaxAPY(cfg.Quality.MaxAPYPercent),
		quality.WithMinGrade(models.Grade(cfg.Quality.MinGrade)),
	)
}

// ProvideRiskScorer creates the risk scoring engine.
func ProvideRiskScorer(cfg *config.Config) domsvc.RiskScorer {
	return risk.NewEngine(
		risk.WithMaxHistoryDays(cfg.Risk.MaxHistoryDays),
		risk.WithInsufficientDataScore(cfg.Risk.InsufficientDataScore),
	)
}

// ProvideQuotePricer creates the deterministic quote pricer.
func ProvideQuotePricer(cfg *config.Config) domsvc.QuotePricer {
	return pricing.NewEngine(
		pricing.WithQuoteTTL(cfg.Pricing.QuoteTTL),
		pricing.WithMinCoverageRatio(cfg.Pricing.MinCoverageRatio),
		pricing.WithConcentrationShare(cfg.Pricing.ConcentrationShare),
		pricing.WithBaseRates(cfg.Pricing.BaseDailyRate.Low, cfg.Pricing.BaseDailyRate.Medium, cfg.Pricing.BaseDailyRate.High),
	)
}

// ProvideCallBuilder creates the contract call parameter builder.
func ProvideCallBuilder() domsvc.CallBuilder {
	return callparams.NewBuilder()
}

// ProvideCoordinator creates the pool retrieval coordinator.
func ProvideCoordinator(
	strategies []drepo.FetchStrategy,
	source drepo.MarketSource,
	validator domsvc.RecordValidator,
	cacheSvc cache.Service,
	m drepo.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.PoolCoordinator {
	return usecase.NewPoolCoordinator(strategies, source, validator, cacheSvc, m, log,
		cfg.Cache.PoolTTL, cfg.Cache.HistoryTTL)
}

// ProvideSnapshotRecorder routes audit writes to the configured backend.
func ProvideSnapshotRecorder(
	cfg *config.Config,
	pub *internalrepo.KafkaPublisher,
	store drepo.AuditStore,
	m drepo.Metrics,
	log *logger.Logger,
) *usecase.SnapshotRecorder {
	// A nil *KafkaPublisher must stay a nil interface, not a typed nil.
	var sink drepo.Publisher
	if pub != nil {
		sink = pub
	}
	return usecase.NewSnapshotRecorder(cfg.Audit.Backend, sink, store, m, log)
}

// ProvideQuoteUseCase creates the quote issuance pipeline.
func ProvideQuoteUseCase(
	coordinator *usecase.PoolCoordinator,
	scorer domsvc.RiskScorer,
	pricer domsvc.QuotePricer,
	builder domsvc.CallBuilder,
	recorder *usecase.SnapshotRecorder,
	cacheSvc cache.Service,
	m drepo.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.QuoteUseCase {
	return usecase.NewQuoteUseCase(
		coordinator, scorer, pricer, builder, recorder, cacheSvc, m, log,
		cfg.Cache.RiskTTL,
		models.Grade(cfg.Quality.MinGrade),
		usecase.ContractSet{
			YieldContractID:     cfg.Contracts.YieldContractID,
			InsuranceContractID: cfg.Contracts.InsuranceContractID,
			InsurancePercent:    cfg.Contracts.InsurancePercent,
		},
	)
}

// ProvideSnapshotCollector creates the background poller, or nil when
// disabled.
func ProvideSnapshotCollector(
	coordinator *usecase.PoolCoordinator,
	recorder *usecase.SnapshotRecorder,
	m drepo.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.SnapshotCollector {
	if !cfg.Collector.Enabled {
		return nil
	}
	return usecase.NewSnapshotCollector(coordinator, recorder, m, log,
		cfg.Collector.Interval, cfg.Collector.Chains, cfg.Collector.TopPools, cfg.Collector.Workers)
}

// ProvideOpsHandler creates the health and readiness endpoints over the
// enabled sinks.
func ProvideOpsHandler(log *logger.Logger, chClient *pkgch.Client) xhttp.Handler {
	var checks []api.HealthCheck
	if chClient != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: chClient.Health})
	}
	return api.NewOpsHandler(log, checks...)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	ingest *usecase.QuoteIngestHandler,
	chClient *pkgch.Client,
	pub *internalrepo.KafkaPublisher,
	quotes *usecase.QuoteUseCase,
) *server.App {
	app := server.New(cfg, log, handler, collector)

	if consumer != nil && ingest != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
		app.AttachIngest(consumer, ingest)
	}

	if pub != nil && cfg.Logging.Collector.Enabled {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.Threshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      pub,
		})
	}

	if chClient != nil {
		app.AddCloser("clickhouse", chClient.Close)
	}
	if pub != nil {
		app.AddCloser("kafka producer", pub.Close)
	}

	app.Quotes = quotes

	return app
}
