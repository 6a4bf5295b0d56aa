package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/narulaskaran/social-graph/application/commands/bus"
	querybus "github.com/narulaskaran/social-graph/application/queries/bus"
	"github.com/narulaskaran/social-graph/interfaces/http/rest/handlers"
	"github.com/narulaskaran/social-graph/interfaces/http/rest/middleware"
	v1 "github.com/narulaskaran/social-graph/interfaces/http/rest/v1"
	"github.com/narulaskaran/social-graph/pkg/common"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/narulaskaran/social-graph/pkg/observability"
)

// Pinger reports whether the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions carries the optional parts of the router. Nil fields
// switch the matching feature off.
type RouterOptions struct {
	CORSOrigins []string
	Metrics     *observability.Collector
	Tracer      *observability.Tracer
	// RateLimit wraps the /api routes
	RateLimit func(http.Handler) http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	store      Pinger
	errHandler *pkgerrors.ErrorHandler
	opts       RouterOptions
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store Pinger,
	errHandler *pkgerrors.ErrorHandler,
	opts RouterOptions,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		store:      store,
		errHandler: errHandler,
		opts:       opts,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.opts.Tracer.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.errHandler.Middleware)
	if rt.opts.Metrics != nil {
		router.Use(middleware.Metrics(rt.opts.Metrics))
	}
	if len(rt.opts.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.NotFound(rt.errHandler.NotFound)
	router.MethodNotAllowed(rt.errHandler.MethodNotAllowed)

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.opts.Metrics.Handler())
	}

	graphHandler := handlers.NewGraphHandler(rt.commandBus, rt.queryBus, rt.errHandler, rt.logger)
	connectionHandler := handlers.NewConnectionHandler(rt.commandBus, rt.queryBus, rt.errHandler, rt.logger)
	profileHandler := handlers.NewProfileHandler(rt.queryBus, rt.errHandler, rt.logger)

	router.Route("/api", func(r chi.Router) {
		if rt.opts.RateLimit != nil {
			r.Use(rt.opts.RateLimit)
		}

		// Legacy global listings
		r.Mount("/v1", v1.NewRouter(rt.queryBus, rt.errHandler, rt.logger))

		r.Get("/profiles", profileHandler.ListProfiles)

		r.Route("/graphs", func(r chi.Router) {
			r.Post("/", graphHandler.CreateGraph)
			r.Route("/{graphID}", func(r chi.Router) {
				r.Get("/", graphHandler.GetGraph)
				r.Delete("/", graphHandler.DeleteGraph)
				r.Post("/add", graphHandler.AddToGraph)
				r.Get("/profiles", profileHandler.ListGraphProfiles)
				r.Get("/connections", connectionHandler.ListConnections)
				r.Post("/connections", connectionHandler.CreateConnection)
				r.Delete("/connections", connectionHandler.DeleteConnection)
			})
		})
	})

	return router
}

// healthCheck handles liveness checks
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck pings the store
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	if err := rt.store.Ping(ctx); err != nil {
		rt.logger.Warn("Readiness check failed", zap.Error(err))
		common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
