package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

func TestTokenBucketLimiter_BurstThenDeny(t *testing.T) {
	l := NewTokenBucketLimiter(1, 3, time.Minute, 0)
	defer l.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, _ := l.Allow(ctx, "ip:1.2.3.4")
	assert.False(t, ok)

	// other keys have their own bucket
	ok, _ = l.Allow(ctx, "ip:5.6.7.8")
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "ip:1.2.3.4")
	assert.True(t, ok, "one token refilled after a second")
}

func TestTokenBucketLimiter_Reset(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1, time.Minute, 0)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	require.False(t, ok)

	require.NoError(t, l.Reset(ctx, "k"))
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestTokenBucketLimiter_RemovesIdleBuckets(t *testing.T) {
	l := NewTokenBucketLimiter(10, 10, time.Minute, 0)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = l.Allow(ctx, "old")
	now = now.Add(2 * time.Minute)
	_, _ = l.Allow(ctx, "fresh")
	require.Equal(t, 2, l.Len())

	l.removeIdle()
	assert.Equal(t, 1, l.Len())
}

type stubLimiter struct {
	allow bool
	err   error
	calls int
}

func (s *stubLimiter) Allow(context.Context, string) (bool, error) {
	s.calls++
	return s.allow, s.err
}

func (s *stubLimiter) Reset(context.Context, string) error { return s.err }

func TestCompositeRateLimiter(t *testing.T) {
	tests := []struct {
		name      string
		first     *stubLimiter
		second    *stubLimiter
		want      bool
		wantErr   bool
		wantCalls int
	}{
		{"both allow", &stubLimiter{allow: true}, &stubLimiter{allow: true}, true, false, 1},
		{"first denies", &stubLimiter{allow: false}, &stubLimiter{allow: true}, false, false, 0},
		{"first errors", &stubLimiter{err: errors.New("boom")}, &stubLimiter{allow: true}, false, true, 0},
		{"second denies", &stubLimiter{allow: true}, &stubLimiter{allow: false}, false, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := NewCompositeRateLimiter(tt.first, tt.second).Allow(context.Background(), "k")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantCalls, tt.second.calls)
		})
	}
}

func TestMiddleware(t *testing.T) {
	l := NewTokenBucketLimiter(0.5, 1, time.Minute, 0)
	handler := Middleware(l, 0.5, pkgerrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/graphs/x", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	var body pkgerrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Error)
	assert.Equal(t, "RATE_LIMIT", body.Type)

	// a different port on the same host shares the bucket
	req.RemoteAddr = "10.0.0.1:6666"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", ClientIP(req))

	req.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", ClientIP(req))
}

type fakeCounter struct {
	counts  map[string]int
	limit   int
	fail    error
	deleted int
}

func (f *fakeCounter) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	pk := counterKey(in.Key)
	if f.counts[pk] >= f.limit {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.counts[pk]++
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"Count": &types.AttributeValueMemberN{Value: strconv.Itoa(f.counts[pk])},
	}}, nil
}

func (f *fakeCounter) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deleted++
	delete(f.counts, counterKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func counterKey(k map[string]types.AttributeValue) string {
	return k["PK"].(*types.AttributeValueMemberS).Value + "/" + k["SK"].(*types.AttributeValueMemberS).Value
}

func TestWindowLimiter(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int{}, limit: 2}
	l := NewWindowLimiter(counter, "social-graph", 2, time.Minute, "IP")
	now := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "new window starts a fresh counter")

	require.NoError(t, l.Reset(ctx, "1.2.3.4"))
	assert.Equal(t, 1, counter.deleted)
}

func TestWindowLimiter_FailsOpen(t *testing.T) {
	l := NewWindowLimiter(&fakeCounter{fail: errors.New("throttled")}, "t", 1, time.Minute, "IP")
	ok, err := l.Allow(context.Background(), "k")
	assert.True(t, ok)
	assert.Error(t, err)

	ok, err = NewWindowLimiter(nil, "t", 1, time.Minute, "IP").Allow(context.Background(), "k")
	assert.True(t, ok)
	assert.NoError(t, err)
}
