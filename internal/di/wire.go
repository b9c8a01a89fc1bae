//go:build wireinject
// +build wireinject

package di

import (
	"YieldGuard/pkg/config"
	"YieldGuard/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient services
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideAuditStore,
		ProvidePublisher,

		// Upstream access
		ProvideRateLimiter,
		ProvideBreakers,
		ProvideMarketSource,
		ProvideStrategies,

		// Domain engines
		ProvideValidator,
		ProvideRiskScorer,
		ProvideQuotePricer,
		ProvideCallBuilder,

		// Use cases
		ProvideCoordinator,
		ProvideSnapshotRecorder,
		ProvideQuoteUseCase,
		ProvideQuoteIngestHandler,
		ProvideSnapshotCollector,

		// HTTP surface and application
		ProvideOpsHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
