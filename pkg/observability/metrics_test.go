package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollector_BusinessMetrics(t *testing.T) {
	c := NewCollector("test")
	ctx := context.Background()

	c.GraphCreated(ctx)
	c.PeopleAdded(ctx, 3, 2)
	c.ConnectionCreated(ctx)
	c.CacheLookup(ctx, true)
	c.CacheLookup(ctx, false)
	c.CacheLookup(ctx, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Ingestions))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ProfilesCreated))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ConnectionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheMisses))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")

	a.GraphCreated(context.Background())
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GraphsCreated))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("socialgraph")
	c.ObserveHTTP(http.MethodGet, "/api/graph/{graphID}", http.StatusOK, 10*time.Millisecond)
	c.ObserveDB("apply_batch", errors.New("boom"), time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `socialgraph_http_requests_total{method="GET",route="/api/graph/{graphID}",status="200"} 1`)
	assert.Contains(t, body, `socialgraph_db_operations_total{operation="apply_batch",status="error"} 1`)
}

func TestCollector_ObserveBus(t *testing.T) {
	c := NewCollector("test")
	c.ObserveBus("query", "GetGraphBundleQuery", nil, time.Millisecond)
	c.ObserveBus("query", "GetGraphBundleQuery", errors.New("missing"), time.Millisecond)
	c.ObserveBus("command", "AddToGraphCommand", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.BusMessages.WithLabelValues("query", "GetGraphBundleQuery", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BusMessages.WithLabelValues("query", "GetGraphBundleQuery", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BusMessages.WithLabelValues("command", "AddToGraphCommand", "success")))
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestCloudWatchMetrics(t *testing.T) {
	client := &fakeCloudWatch{}
	m := NewCloudWatchMetrics("SocialGraph", client, zap.NewNop())

	m.PeopleAdded(context.Background(), 4, 6)
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "SocialGraph", aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 3)
	assert.Equal(t, "ProfilesCreated", aws.ToString(in.MetricData[1].MetricName))
	assert.Equal(t, 4.0, aws.ToFloat64(in.MetricData[1].Value))

	client.err = errors.New("throttled")
	assert.NotPanics(t, func() { m.GraphCreated(context.Background()) })

	disabled := NewCloudWatchMetrics("SocialGraph", nil, zap.NewNop())
	assert.NotPanics(t, func() { disabled.GraphDeleted(context.Background()) })
}
