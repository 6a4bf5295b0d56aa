package eventbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/narulaskaran/social-graph/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	calls  []*eventbridge.PutEventsInput
	failed int32
	err    error
}

func (f *fakeClient) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for range in.Entries {
		entry := types.PutEventsResultEntry{EventId: aws.String("id")}
		if f.failed > 0 {
			entry.ErrorCode = aws.String("InternalFailure")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func graphEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewGraphCreated("g", time.Now())
	}
	return out
}

func TestPublishBatch_Chunks(t *testing.T) {
	tests := []struct {
		name      string
		events    int
		wantCalls int
	}{
		{"empty", 0, 0},
		{"single", 1, 1},
		{"exactly ten", 10, 1},
		{"twenty five", 25, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			p := NewPublisher(client, "bus", zap.NewNop())

			require.NoError(t, p.PublishBatch(context.Background(), graphEvents(tt.events)))
			assert.Len(t, client.calls, tt.wantCalls)
		})
	}
}

func TestPublish_EntryShape(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "bus", zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), events.NewGraphDeleted("abc", time.Now())))
	require.Len(t, client.calls, 1)

	entry := client.calls[0].Entries[0]
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, events.Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeGraphDeleted, aws.ToString(entry.DetailType))
	assert.Contains(t, aws.ToString(entry.Detail), `"graph_id":"abc"`)
}

func TestPublish_Failures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		p := NewPublisher(&fakeClient{err: errors.New("boom")}, "bus", zap.NewNop())
		assert.Error(t, p.Publish(context.Background(), events.NewGraphCreated("g", time.Now())))
	})
	t.Run("failed entries", func(t *testing.T) {
		p := NewPublisher(&fakeClient{failed: 1}, "bus", zap.NewNop())
		assert.Error(t, p.Publish(context.Background(), events.NewGraphCreated("g", time.Now())))
	})
}
