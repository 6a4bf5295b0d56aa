package di

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/commands/bus"
	commandhandlers "github.com/narulaskaran/social-graph/application/commands/handlers"
	"github.com/narulaskaran/social-graph/application/ports"
	querybus "github.com/narulaskaran/social-graph/application/queries/bus"
	queryhandlers "github.com/narulaskaran/social-graph/application/queries/handlers"
	"github.com/narulaskaran/social-graph/application/services"
	domainconfig "github.com/narulaskaran/social-graph/domain/config"
	"github.com/narulaskaran/social-graph/infrastructure/cache"
	"github.com/narulaskaran/social-graph/infrastructure/config"
	"github.com/narulaskaran/social-graph/infrastructure/messaging"
	"github.com/narulaskaran/social-graph/infrastructure/messaging/eventbridge"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/badgerstore"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/dynamodb"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/gormstore"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/memory"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/neo4jstore"
	"github.com/narulaskaran/social-graph/interfaces/http/rest"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/narulaskaran/social-graph/pkg/observability"
	"github.com/narulaskaran/social-graph/pkg/ratelimit"
)

// metricsNamespace prefixes every Prometheus metric name
const metricsNamespace = "socialgraph"

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	LogLevel    zap.AtomicLevel
	Store       ports.GraphStore
	Cache       ports.Cache
	Publisher   ports.EventPublisher
	Collector   *observability.Collector
	Tracer      *observability.Tracer
	Graphs      *services.GraphService
	Ingestion   *services.IngestionService
	CommandBus  *bus.CommandBus
	QueryBus    *querybus.QueryBus
	RateLimiter ratelimit.RateLimiter
	ErrHandler  *pkgerrors.ErrorHandler
	Router      *rest.Router
}

// ProvideLogLevel parses the configured log level into an adjustable level
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	atom := zap.NewAtomicLevel()
	if err := observability.SetLevel(atom, cfg.LogLevel); err != nil {
		return atom, err
	}
	return atom, nil
}

// ProvideLogger creates the process logger. The cleanup flushes it.
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	logger, err := observability.BuildLogger(cfg.Environment, level)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("service", cfg.ServiceName))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at DynamoDB Local
// when an endpoint is configured
func ProvideDynamoDBClient(ctx context.Context, cfg *config.Config) (*awsdynamodb.Client, error) {
	return dynamodb.NewClient(ctx, cfg.AWS.Region, cfg.Store.DynamoDBEndpoint)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideTracer returns an X-Ray tracer, or nil when tracing is off
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer(cfg.ServiceName)
}

// ProvideCollector creates the Prometheus collector. The store and buses
// always record into it; EnableMetrics only controls whether /metrics is
// served.
func ProvideCollector() *observability.Collector {
	return observability.NewCollector(metricsNamespace)
}

// OpenStore opens the configured store backend without instrumentation
func OpenStore(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.GraphStore, error) {
	sc := cfg.Store
	switch sc.Backend {
	case config.StoreMemory:
		return memory.NewStore(logger), nil
	case config.StoreSQLite:
		return gormstore.OpenSQLite(sc.SQLitePath, logger)
	case config.StorePostgres:
		return gormstore.OpenPostgres(sc.PostgresDSN, logger)
	case config.StoreBadger:
		return badgerstore.Open(badgerstore.Config{Path: sc.BadgerPath, GCInterval: sc.BadgerGC}, logger)
	case config.StoreDynamoDB:
		if sc.DynamoDBEndpoint != "" {
			if err := dynamodb.EnsureTable(ctx, client, sc.DynamoDBTable); err != nil {
				return nil, err
			}
		}
		return dynamodb.NewStore(client, sc.DynamoDBTable, logger), nil
	case config.StoreNeo4j:
		return neo4jstore.Open(ctx, neo4jstore.Config{
			URI:      sc.Neo4jURI,
			Username: sc.Neo4jUser,
			Password: sc.Neo4jPassword,
			Database: sc.Neo4jDatabase,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// ProvideGraphStore opens the configured backend and wraps it with metrics,
// tracing and slow-call logging. The cleanup closes the store.
func ProvideGraphStore(
	ctx context.Context,
	cfg *config.Config,
	client *awsdynamodb.Client,
	collector *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (ports.GraphStore, func(), error) {
	store, err := OpenStore(ctx, cfg, client, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	logger.Info("Store opened", zap.String("backend", cfg.Store.Backend))

	instrumented := persistence.NewInstrumentedStore(store, collector, tracer, logger).
		WithSlowThreshold(cfg.Store.SlowThreshold)
	cleanup := func() {
		if err := instrumented.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}
	return instrumented, cleanup, nil
}

// ProvideCache creates the bundle cache. The "none" backend yields a nil
// cache, which the services treat as caching disabled.
func ProvideCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		c := cache.NewInMemoryCache(cfg.Cache.SweepInterval)
		return c, func() { _ = c.Close() }, nil
	case config.CacheRedis:
		c, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.RedisPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// ProvideEventPublisher publishes to EventBridge when events are enabled and
// logs them otherwise
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.AWS.EnableEvents {
		return eventbridge.NewPublisher(client, cfg.AWS.EventBusName, logger)
	}
	return messaging.NewLogPublisher(logger)
}

// ProvideMetrics fans business metrics out to Prometheus and, when enabled,
// CloudWatch
func ProvideMetrics(cfg *config.Config, collector *observability.Collector, client *awscloudwatch.Client, logger *zap.Logger) ports.Metrics {
	metrics := ports.MultiMetrics{collector}
	if cfg.AWS.EnableCloudWatch {
		metrics = append(metrics, observability.NewCloudWatchMetrics(cfg.AWS.MetricsNamespace, client, logger))
	}
	return metrics
}

// ProvideDomainConfig exposes the domain limits
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return &cfg.Domain
}

// ProvideGraphService creates the graph service
func ProvideGraphService(
	cfg *config.Config,
	store ports.GraphStore,
	publisher ports.EventPublisher,
	c ports.Cache,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.GraphService {
	return services.NewGraphService(store, publisher, c, metrics, cfg.Cache.TTL, logger)
}

// ProvideCommandBus creates the command bus and registers every handler
func ProvideCommandBus(
	graphs *services.GraphService,
	ingestion *services.IngestionService,
	collector *observability.Collector,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(bus.NewZapLogger(logger)),
		bus.MetricsMiddleware(collector),
	)
	if err := commandhandlers.NewGraphCommandHandlers(graphs, ingestion).Register(commandBus); err != nil {
		return nil, fmt.Errorf("register command handlers: %w", err)
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus and registers every handler
func ProvideQueryBus(graphs *services.GraphService, collector *observability.Collector) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.NewMetricsMiddleware(collector))
	if err := queryhandlers.NewGraphQueryHandlers(graphs).Register(queryBus); err != nil {
		return nil, fmt.Errorf("register query handlers: %w", err)
	}
	return queryBus, nil
}

// ProvideRateLimiter returns nil when rate limiting is off. Each process
// keeps token buckets; in distributed mode requests must also fit a shared
// per-minute budget counted in the DynamoDB table.
func ProvideRateLimiter(cfg *config.Config, client *awsdynamodb.Client) (ratelimit.RateLimiter, func()) {
	rl := cfg.RateLimit
	if rl.RPS <= 0 {
		return nil, func() {}
	}
	local := ratelimit.NewTokenBucketLimiter(rl.RPS, rl.Burst, 10*time.Minute, time.Minute)
	if !rl.Distributed {
		return local, local.Close
	}
	perMinute := int(math.Ceil(rl.RPS * 60))
	shared := ratelimit.NewWindowLimiter(client, cfg.Store.DynamoDBTable, perMinute, time.Minute, "api")
	return ratelimit.NewCompositeRateLimiter(local, shared), local.Close
}

// ProvideErrorHandler creates the HTTP error renderer. Error causes are
// never echoed to clients in production, even with Debug set.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.Debug && !cfg.IsProduction())
}

// ProvideRouter assembles the HTTP router
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store ports.GraphStore,
	errHandler *pkgerrors.ErrorHandler,
	collector *observability.Collector,
	tracer *observability.Tracer,
	limiter ratelimit.RateLimiter,
	logger *zap.Logger,
) *rest.Router {
	opts := rest.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Tracer:      tracer,
	}
	if cfg.EnableMetrics {
		opts.Metrics = collector
	}
	if limiter != nil {
		opts.RateLimit = ratelimit.Middleware(limiter, cfg.RateLimit.RPS, errHandler, logger)
	}
	return rest.NewRouter(commandBus, queryBus, store, errHandler, opts, logger)
}
