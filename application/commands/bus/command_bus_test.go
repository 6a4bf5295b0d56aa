package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

type pingCommand struct {
	valid bool
}

func (c pingCommand) Validate() error {
	if !c.valid {
		return pkgerrors.NewValidationError("ping is invalid")
	}
	return nil
}

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	errs  []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

type recordingMetrics struct {
	names    []string
	failures int
}

func (m *recordingMetrics) ObserveBus(kind, name string, err error, _ time.Duration) {
	m.names = append(m.names, kind+":"+name)
	if err != nil {
		m.failures++
	}
}

func TestCommandBus_Send(t *testing.T) {
	logger := &recordingLogger{}
	metrics := &recordingMetrics{}
	b := NewCommandBus(LoggingMiddleware(logger), MetricsMiddleware(metrics))

	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		return "pong", nil
	})))

	result, err := b.Send(context.Background(), pingCommand{valid: true})
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
	assert.Equal(t, []string{"Executing command", "Command succeeded"}, logger.infos)
	assert.Equal(t, []string{"command:pingCommand"}, metrics.names)
}

func TestCommandBus_DuplicateRegistration(t *testing.T) {
	b := NewCommandBus()
	h := CommandHandlerFunc(func(context.Context, Command) (interface{}, error) { return nil, nil })

	require.NoError(t, b.Register(pingCommand{}, h))
	assert.Error(t, b.Register(pingCommand{}, h))
}

func TestCommandBus_Errors(t *testing.T) {
	notFound := pkgerrors.NewNotFoundError("graph")

	tests := []struct {
		name     string
		register bool
		cmd      pingCommand
		check    func(t *testing.T, err error)
	}{
		{
			name:     "validation failure keeps its type",
			register: true,
			cmd:      pingCommand{valid: false},
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsValidation(err))
			},
		},
		{
			name:     "handler error keeps its type",
			register: true,
			cmd:      pingCommand{valid: true},
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsNotFound(err))
				assert.ErrorIs(t, err, notFound)
			},
		},
		{
			name:     "no handler",
			register: false,
			cmd:      pingCommand{valid: true},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrHandlerNotFound))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			b := NewCommandBus(LoggingMiddleware(logger))
			if tt.register {
				require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
					return nil, notFound
				})))
			}

			_, err := b.Send(context.Background(), tt.cmd)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestPipeline_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}

	h := NewPipeline(mark("outer"), mark("inner")).Execute(CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		order = append(order, "handler")
		return nil, nil
	}))
	_, err := h.Handle(context.Background(), pingCommand{valid: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
