package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of one process. Each collector owns
// its registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	GraphsCreated      prometheus.Counter
	GraphsDeleted      prometheus.Counter
	Ingestions         prometheus.Counter
	ProfilesCreated    prometheus.Counter
	ConnectionsCreated prometheus.Counter
	ConnectionsDeleted prometheus.Counter

	// Store metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Bus metrics
	BusMessages *prometheus.CounterVec
	BusDuration *prometheus.HistogramVec
}

// NewCollector creates a collector whose metric names start with namespace
func NewCollector(namespace string) *Collector {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GraphsCreated:      counter("graphs_created_total", "Total number of graphs created"),
		GraphsDeleted:      counter("graphs_deleted_total", "Total number of graphs deleted"),
		Ingestions:         counter("ingestions_total", "Total number of committed add-to-graph requests"),
		ProfilesCreated:    counter("profiles_created_total", "Total number of profiles created"),
		ConnectionsCreated: counter("connections_created_total", "Total number of connections created"),
		ConnectionsDeleted: counter("connections_deleted_total", "Total number of connection delete requests"),
		DBOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"operation", "status"},
		),
		DBDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheHits:   counter("cache_hits_total", "Total number of cache hits"),
		CacheMisses: counter("cache_misses_total", "Total number of cache misses"),
		BusMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_messages_total",
				Help:      "Total number of dispatched commands and queries",
			},
			[]string{"kind", "name", "status"},
		),
		BusDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bus_message_duration_seconds",
				Help:      "Command and query handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "name"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.GraphsCreated,
		c.GraphsDeleted,
		c.Ingestions,
		c.ProfilesCreated,
		c.ConnectionsCreated,
		c.ConnectionsDeleted,
		c.DBOperations,
		c.DBDuration,
		c.CacheHits,
		c.CacheMisses,
		c.BusMessages,
		c.BusDuration,
	)
	return c
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDB records one store operation
func (c *Collector) ObserveDB(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.DBOperations.WithLabelValues(operation, status).Inc()
	c.DBDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveBus records one command or query dispatch. kind is "command" or "query".
func (c *Collector) ObserveBus(kind, name string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.BusMessages.WithLabelValues(kind, name, status).Inc()
	c.BusDuration.WithLabelValues(kind, name).Observe(duration.Seconds())
}

func (c *Collector) GraphCreated(context.Context) { c.GraphsCreated.Inc() }
func (c *Collector) GraphDeleted(context.Context) { c.GraphsDeleted.Inc() }

func (c *Collector) PeopleAdded(_ context.Context, profilesCreated, connectionsCreated int) {
	c.Ingestions.Inc()
	c.ProfilesCreated.Add(float64(profilesCreated))
	c.ConnectionsCreated.Add(float64(connectionsCreated))
}

func (c *Collector) ConnectionCreated(context.Context) { c.ConnectionsCreated.Inc() }
func (c *Collector) ConnectionDeleted(context.Context) { c.ConnectionsDeleted.Inc() }

func (c *Collector) CacheLookup(_ context.Context, hit bool) {
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}
