package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narulaskaran/social-graph/infrastructure/config"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Backend = config.StoreMemory
	cfg.LogLevel = "error"
	return cfg
}

func TestInitializeContainer(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimit.RPS = 5

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, container.Cache)
	assert.NotNil(t, container.RateLimiter)
	assert.Nil(t, container.Tracer)

	handler := container.Router.Setup()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/graphs", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "socialgraph_graphs_created_total 1")
}

func TestInitializeContainer_Options(t *testing.T) {
	cfg := memoryConfig()
	cfg.Cache.Backend = config.CacheNone
	cfg.EnableMetrics = false

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, container.Cache)
	assert.Nil(t, container.RateLimiter)

	rec := httptest.NewRecorder()
	container.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitializeContainer_BadLevel(t *testing.T) {
	cfg := memoryConfig()
	cfg.LogLevel = "shouting"

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Backend = "cassandra"

	_, err := OpenStore(context.Background(), cfg, nil, nil)
	assert.ErrorContains(t, err, "unknown store backend")
}
