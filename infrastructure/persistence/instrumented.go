package persistence

import (
	"context"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/pkg/observability"
	"go.uber.org/zap"
)

// DBObserver receives the outcome of each store call
type DBObserver interface {
	ObserveDB(operation string, err error, duration time.Duration)
}

// InstrumentedStore decorates a GraphStore with timing metrics, X-Ray
// subsegments and slow-call logging
type InstrumentedStore struct {
	next          ports.GraphStore
	observer      DBObserver
	tracer        *observability.Tracer
	logger        *zap.Logger
	slowThreshold time.Duration
}

// NewInstrumentedStore wraps next. observer and tracer may be nil.
func NewInstrumentedStore(next ports.GraphStore, observer DBObserver, tracer *observability.Tracer, logger *zap.Logger) *InstrumentedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedStore{
		next:          next,
		observer:      observer,
		tracer:        tracer,
		logger:        logger.Named("store"),
		slowThreshold: 500 * time.Millisecond,
	}
}

// WithSlowThreshold sets the duration above which a call is logged as slow
func (s *InstrumentedStore) WithSlowThreshold(d time.Duration) *InstrumentedStore {
	if d > 0 {
		s.slowThreshold = d
	}
	return s
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := s.tracer.TraceFunction(ctx, "store."+op, fn)
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer.ObserveDB(op, err, elapsed)
	}
	if elapsed > s.slowThreshold {
		s.logger.Warn("Slow store operation", zap.String("operation", op), zap.Duration("duration", elapsed))
	}
	return err
}

func (s *InstrumentedStore) CreateGraph(ctx context.Context) (g *entities.Graph, err error) {
	err = s.observe(ctx, "create_graph", func(ctx context.Context) error {
		g, err = s.next.CreateGraph(ctx)
		return err
	})
	return g, err
}

func (s *InstrumentedStore) GetGraph(ctx context.Context, id string) (g *entities.Graph, err error) {
	err = s.observe(ctx, "get_graph", func(ctx context.Context) error {
		g, err = s.next.GetGraph(ctx, id)
		return err
	})
	return g, err
}

func (s *InstrumentedStore) DeleteGraph(ctx context.Context, id string) error {
	return s.observe(ctx, "delete_graph", func(ctx context.Context) error {
		return s.next.DeleteGraph(ctx, id)
	})
}

func (s *InstrumentedStore) UpsertProfile(ctx context.Context, profile entities.Profile) error {
	return s.observe(ctx, "upsert_profile", func(ctx context.Context) error {
		return s.next.UpsertProfile(ctx, profile)
	})
}

func (s *InstrumentedStore) UpsertProfiles(ctx context.Context, profiles []entities.Profile) error {
	return s.observe(ctx, "upsert_profiles", func(ctx context.Context) error {
		return s.next.UpsertProfiles(ctx, profiles)
	})
}

func (s *InstrumentedStore) GetProfile(ctx context.Context, id string) (p *entities.Profile, err error) {
	err = s.observe(ctx, "get_profile", func(ctx context.Context) error {
		p, err = s.next.GetProfile(ctx, id)
		return err
	})
	return p, err
}

func (s *InstrumentedStore) GetProfiles(ctx context.Context, graphID string) (out []entities.Profile, err error) {
	err = s.observe(ctx, "get_profiles", func(ctx context.Context) error {
		out, err = s.next.GetProfiles(ctx, graphID)
		return err
	})
	return out, err
}

func (s *InstrumentedStore) FindProfileByName(ctx context.Context, graphID string, name valueobjects.PersonName) (p *entities.Profile, err error) {
	err = s.observe(ctx, "find_profile_by_name", func(ctx context.Context) error {
		p, err = s.next.FindProfileByName(ctx, graphID, name)
		return err
	})
	return p, err
}

func (s *InstrumentedStore) UpsertConnection(ctx context.Context, conn entities.Connection) error {
	return s.observe(ctx, "upsert_connection", func(ctx context.Context) error {
		return s.next.UpsertConnection(ctx, conn)
	})
}

func (s *InstrumentedStore) UpsertConnections(ctx context.Context, conns []entities.Connection) error {
	return s.observe(ctx, "upsert_connections", func(ctx context.Context) error {
		return s.next.UpsertConnections(ctx, conns)
	})
}

func (s *InstrumentedStore) GetConnections(ctx context.Context, graphID string) (out []entities.Connection, err error) {
	err = s.observe(ctx, "get_connections", func(ctx context.Context) error {
		out, err = s.next.GetConnections(ctx, graphID)
		return err
	})
	return out, err
}

func (s *InstrumentedStore) DeleteConnection(ctx context.Context, a, b, graphID string) error {
	return s.observe(ctx, "delete_connection", func(ctx context.Context) error {
		return s.next.DeleteConnection(ctx, a, b, graphID)
	})
}

func (s *InstrumentedStore) ApplyBatch(ctx context.Context, batch ports.Batch) (r *ports.BatchResult, err error) {
	err = s.observe(ctx, "apply_batch", func(ctx context.Context) error {
		r, err = s.next.ApplyBatch(ctx, batch)
		return err
	})
	return r, err
}

func (s *InstrumentedStore) ClearDatabase(ctx context.Context) error {
	return s.observe(ctx, "clear_database", func(ctx context.Context) error {
		return s.next.ClearDatabase(ctx)
	})
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}

var _ ports.GraphStore = (*InstrumentedStore)(nil)
