//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/narulaskaran/social-graph/application/services"
	"github.com/narulaskaran/social-graph/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideTracer,
	ProvideCollector,
	ProvideGraphStore,
	ProvideCache,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideDomainConfig,
	ProvideGraphService,
	services.NewIngestionService,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideRateLimiter,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases the store, cache, rate limiter and logger in reverse order.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
