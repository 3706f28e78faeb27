//go:build wireinject
// +build wireinject

package di

import (
	"LutherTerminal/pkg/config"
	"LutherTerminal/pkg/server"

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
		ProvideCache,

		// Repositories
		ProvideBarStore,
		ProvidePublisher,

		// Core
		ProvidePredictorConfig,
		ProvidePredictorFactory,

		// Use cases
		ProvidePredictionUseCase,
		ProvideWatchlistUseCase,
		ProvideFeaturesUseCase,

		// Transport and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
