//go:build wireinject
// +build wireinject

package di

import (
	"drreport/pkg/config"
	"drreport/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideArtifactStore,
		ProvidePriceStore,
		ProvideArtifactArchive,
		ProvideSymbolRegistry,
		ProvidePriceProvider,
		ProvideReportGenerator,
		ProvideJobDispatcher,
		ProvideReadCache,

		// Use cases
		ProvideFetcher,
		ProvideReportWorker,
		ProvideOrchestrator,
		ProvideKafkaReportsHandler,

		// Delivery
		ProvideHub,
		ProvideNotifier,
		ProvideNotifyQueue,
		ProvideReportsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
