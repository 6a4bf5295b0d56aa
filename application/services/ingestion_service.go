package services

import (
	"context"
	"errors"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	domainconfig "github.com/narulaskaran/social-graph/domain/config"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/domain/events"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/narulaskaran/social-graph/pkg/observability"
	"go.uber.org/zap"
)

const conflictBaseDelay = 25 * time.Millisecond

// Person is a name as submitted by a client
type Person struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AddToGraphInput is one ingestion request: the submitter and the people they know
type AddToGraphInput struct {
	GraphID         string
	Self            Person
	Connections     []Person
	ConnectEveryone bool
}

// AddToGraphResult reports the profiles and edges an ingestion resolved to
type AddToGraphResult struct {
	SelfID string `json:"self_id"`
	// ProfileIDs maps each identity key ("first|||last") to its profile id
	ProfileIDs         map[string]string `json:"profile_ids"`
	ProfilesCreated    int               `json:"profiles_created"`
	ConnectionsCreated int               `json:"connections_created"`
	SkippedConnections int               `json:"skipped_connections"`
}

// IngestionService turns a submission of names into profiles and connections
type IngestionService struct {
	store  ports.GraphStore
	cfg    *domainconfig.DomainConfig
	fx     effects
	tracer *observability.Tracer
	logger *zap.Logger
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	store ports.GraphStore,
	publisher ports.EventPublisher,
	cache ports.Cache,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	cfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *IngestionService {
	if cfg == nil {
		cfg = domainconfig.DefaultDomainConfig()
	}
	fx := newEffects(publisher, cache, metrics, logger)
	return &IngestionService{
		store:  store,
		cfg:    cfg,
		fx:     fx,
		tracer: tracer,
		logger: fx.logger.Named("ingestion"),
	}
}

// AddToGraph resolves self and each connection to a profile, creating the
// missing ones, and stores the implied edges in a single batch.
//
// With ConnectEveryone unset self is connected to each connection; with it set
// every pair among the resolved people is connected. Connection entries with
// an invalid name are dropped and counted in SkippedConnections.
func (s *IngestionService) AddToGraph(ctx context.Context, in AddToGraphInput) (*AddToGraphResult, error) {
	people, skipped, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	if !valueobjects.IsValidGraphID(in.GraphID) {
		return nil, pkgerrors.NewValidationError("invalid graph id").WithDetail("graph_id", in.GraphID)
	}
	graph, err := s.store.GetGraph(ctx, in.GraphID)
	if err != nil {
		return nil, err
	}
	if graph == nil {
		return nil, pkgerrors.NewNotFoundError("graph").WithDetail("graph_id", in.GraphID)
	}

	var result *AddToGraphResult
	err = s.tracer.TraceFunction(ctx, "ingestion.AddToGraph", func(ctx context.Context) error {
		s.tracer.AddAnnotation(ctx, "graph_id", in.GraphID)
		s.tracer.AddMetadata(ctx, "people", len(people))
		var err error
		result, err = s.applyWithRetry(ctx, in.GraphID, people, in.ConnectEveryone)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.SkippedConnections = skipped

	s.logger.Info("People added to graph",
		zap.String("graph_id", in.GraphID),
		zap.Int("people", len(people)),
		zap.Int("profiles_created", result.ProfilesCreated),
		zap.Int("connections_created", result.ConnectionsCreated),
		zap.Int("skipped_connections", skipped),
		zap.Bool("connect_everyone", in.ConnectEveryone),
	)

	s.fx.invalidate(ctx, in.GraphID)
	s.fx.metrics.PeopleAdded(ctx, result.ProfilesCreated, result.ConnectionsCreated)
	s.fx.publish(ctx, events.NewPeopleAdded(in.GraphID, result.SelfID,
		result.ProfilesCreated, result.ConnectionsCreated, in.ConnectEveryone, s.fx.now()))

	return result, nil
}

// normalize validates self, filters invalid connection entries and returns the
// distinct names with self first.
func (s *IngestionService) normalize(in AddToGraphInput) ([]valueobjects.PersonName, int, error) {
	self, err := valueobjects.NewPersonName(in.Self.FirstName, in.Self.LastName, s.cfg.MaxNameLength)
	if err != nil {
		if errors.Is(err, valueobjects.ErrBlankName) {
			return nil, 0, pkgerrors.NewValidationError("self.first_name and self.last_name are required")
		}
		return nil, 0, pkgerrors.NewValidationErrorf("self: %v", err)
	}

	people := []valueobjects.PersonName{self}
	seen := map[string]bool{self.Key(): true}
	skipped := 0
	for _, c := range in.Connections {
		name, err := valueobjects.NewPersonName(c.FirstName, c.LastName, s.cfg.MaxNameLength)
		if err != nil {
			skipped++
			continue
		}
		if seen[name.Key()] {
			continue
		}
		seen[name.Key()] = true
		people = append(people, name)
	}

	if len(people) > s.cfg.MaxPeoplePerSubmission {
		return nil, 0, pkgerrors.NewValidationErrorf(
			"too many people in one submission: %d (limit %d)", len(people), s.cfg.MaxPeoplePerSubmission)
	}
	return people, skipped, nil
}

// applyWithRetry re-resolves names after a conflict. Only stores that detect
// races at commit time report conflicts; the retry reads their winner.
func (s *IngestionService) applyWithRetry(ctx context.Context, graphID string, people []valueobjects.PersonName, everyone bool) (*AddToGraphResult, error) {
	for attempt := 0; ; attempt++ {
		result, err := s.apply(ctx, graphID, people, everyone)
		if err == nil {
			return result, nil
		}
		if !pkgerrors.IsConflict(err) || attempt >= s.cfg.ConflictRetries {
			return nil, err
		}

		delay := conflictBaseDelay * time.Duration(1<<attempt)
		s.logger.Warn("Ingestion conflicted, retrying",
			zap.String("graph_id", graphID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *IngestionService) apply(ctx context.Context, graphID string, people []valueobjects.PersonName, everyone bool) (*AddToGraphResult, error) {
	existing, err := s.store.GetProfiles(ctx, graphID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]string, len(existing))
	for _, p := range existing {
		byKey[p.NameKey()] = p.ID
	}

	ids := make([]string, len(people))
	var created []entities.Profile
	for i, name := range people {
		if id, ok := byKey[name.Key()]; ok {
			ids[i] = id
			continue
		}
		p := entities.NewProfile(graphID, name)
		created = append(created, p)
		byKey[name.Key()] = p.ID
		ids[i] = p.ID
	}

	var conns []entities.Connection
	if everyone {
		conns = entities.PairwiseConnections(graphID, ids)
	} else {
		conns = entities.StarConnections(graphID, ids[0], ids[1:])
	}

	batch, err := s.store.ApplyBatch(ctx, ports.Batch{Profiles: created, Connections: conns})
	if err != nil {
		return nil, err
	}

	result := &AddToGraphResult{
		ProfileIDs:         make(map[string]string, len(people)),
		ProfilesCreated:    batch.ProfilesCreated,
		ConnectionsCreated: batch.ConnectionsCreated,
	}
	for i, name := range people {
		result.ProfileIDs[name.Key()] = batch.Resolve(ids[i])
	}
	result.SelfID = result.ProfileIDs[people[0].Key()]
	return result, nil
}
