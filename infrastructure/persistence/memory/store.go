// Package memory implements ports.GraphStore on maps guarded by a mutex.
// It backs tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	"go.uber.org/zap"
)

// Store keeps every record in process memory
type Store struct {
	mu       sync.RWMutex
	graphs   map[string]entities.Graph
	profiles map[string]entities.Profile
	names    map[string]string // graph id + name key -> profile id
	conns    map[string]entities.Connection

	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates an empty in-memory store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		now:    time.Now,
		logger: logger.Named("memory_store"),
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.graphs = make(map[string]entities.Graph)
	s.profiles = make(map[string]entities.Profile)
	s.names = make(map[string]string)
	s.conns = make(map[string]entities.Connection)
}

func nameIndexKey(graphID, nameKey string) string {
	return graphID + "\x00" + nameKey
}

// CreateGraph allocates and stores a new graph
func (s *Store) CreateGraph(ctx context.Context) (*entities.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := entities.NewGraph(s.now())
	for {
		if _, taken := s.graphs[g.ID]; !taken {
			break
		}
		g = entities.NewGraph(s.now())
	}
	s.graphs[g.ID] = *g

	s.logger.Debug("Graph created", zap.String("graph_id", g.ID))
	return g, nil
}

// GetGraph returns the graph or nil when absent
func (s *Store) GetGraph(ctx context.Context, id string) (*entities.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// DeleteGraph removes the graph and everything it owns
func (s *Store) DeleteGraph(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[id]; !ok {
		return nil
	}
	for key, c := range s.conns {
		if c.GraphID == id {
			delete(s.conns, key)
		}
	}
	for pid, p := range s.profiles {
		if p.GraphID == id {
			delete(s.names, nameIndexKey(id, p.NameKey()))
			delete(s.profiles, pid)
		}
	}
	delete(s.graphs, id)
	return nil
}

func (s *Store) UpsertProfile(ctx context.Context, profile entities.Profile) error {
	_, err := s.ApplyBatch(ctx, persistence.ProfilesOnly(profile))
	return err
}

func (s *Store) UpsertProfiles(ctx context.Context, profiles []entities.Profile) error {
	_, err := s.ApplyBatch(ctx, persistence.ProfilesOnly(profiles...))
	return err
}

// GetProfile returns the profile or nil when absent
func (s *Store) GetProfile(ctx context.Context, id string) (*entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetProfiles lists profiles, optionally scoped to one graph
func (s *Store) GetProfiles(ctx context.Context, graphID string) ([]entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Profile, 0)
	for _, p := range s.profiles {
		if graphID == "" || p.GraphID == graphID {
			out = append(out, p)
		}
	}
	entities.SortProfiles(out)
	return out, nil
}

// FindProfileByName looks a profile up by its identity key
func (s *Store) FindProfileByName(ctx context.Context, graphID string, name valueobjects.PersonName) (*entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.names[nameIndexKey(graphID, name.Key())]
	if !ok {
		return nil, nil
	}
	p := s.profiles[id]
	return &p, nil
}

func (s *Store) UpsertConnection(ctx context.Context, conn entities.Connection) error {
	_, err := s.ApplyBatch(ctx, persistence.ConnectionsOnly(conn))
	return err
}

func (s *Store) UpsertConnections(ctx context.Context, conns []entities.Connection) error {
	_, err := s.ApplyBatch(ctx, persistence.ConnectionsOnly(conns...))
	return err
}

// GetConnections lists connections, optionally scoped to one graph
func (s *Store) GetConnections(ctx context.Context, graphID string) ([]entities.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Connection, 0)
	for _, c := range s.conns {
		if graphID == "" || c.GraphID == graphID {
			out = append(out, c)
		}
	}
	entities.SortConnections(out)
	return out, nil
}

// DeleteConnection removes the edge in either orientation
func (s *Store) DeleteConnection(ctx context.Context, a, b, graphID string) error {
	conn, ok := entities.NewConnection(a, b, graphID)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn.Key())
	return nil
}

// ApplyBatch validates the whole batch against current state plus its own
// staged writes, then commits. Nothing is written if any check fails.
func (s *Store) ApplyBatch(ctx context.Context, batch ports.Batch) (*ports.BatchResult, error) {
	if err := persistence.ValidateBatch(batch); err != nil {
		return nil, err
	}
	result := persistence.NewBatchResult(len(batch.Profiles))
	if batch.IsEmpty() {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stagedProfiles := make(map[string]entities.Profile)
	stagedNames := make(map[string]string)
	for _, p := range batch.Profiles {
		if _, ok := s.graphs[p.GraphID]; !ok {
			return nil, persistence.ErrGraphNotFound(p.GraphID)
		}

		nk := nameIndexKey(p.GraphID, p.NameKey())
		if id, ok := s.names[nk]; ok {
			result.ProfileIDs[p.ID] = id
			continue
		}
		if id, ok := stagedNames[nk]; ok {
			result.ProfileIDs[p.ID] = id
			continue
		}

		_, stored := s.profiles[p.ID]
		_, staged := stagedProfiles[p.ID]
		if stored || staged {
			return nil, persistence.ErrProfileIDConflict(p.ID)
		}

		stagedProfiles[p.ID] = p
		stagedNames[nk] = p.ID
		result.ProfileIDs[p.ID] = p.ID
	}

	lookup := func(id string) (entities.Profile, bool) {
		if p, ok := stagedProfiles[id]; ok {
			return p, true
		}
		p, ok := s.profiles[id]
		return p, ok
	}

	stagedConns := make(map[string]entities.Connection)
	for _, c := range batch.Connections {
		conn, ok := entities.NewConnection(result.Resolve(c.ProfileAID), result.Resolve(c.ProfileBID), c.GraphID)
		if !ok {
			continue
		}
		if _, ok := s.graphs[conn.GraphID]; !ok {
			return nil, persistence.ErrGraphNotFound(conn.GraphID)
		}
		for _, id := range []string{conn.ProfileAID, conn.ProfileBID} {
			if p, ok := lookup(id); !ok || p.GraphID != conn.GraphID {
				return nil, persistence.ErrProfileNotFound(id, conn.GraphID)
			}
		}
		key := conn.Key()
		if _, exists := s.conns[key]; exists {
			continue
		}
		stagedConns[key] = conn
	}

	for id, p := range stagedProfiles {
		s.profiles[id] = p
		s.names[nameIndexKey(p.GraphID, p.NameKey())] = id
	}
	for key, c := range stagedConns {
		s.conns[key] = c
	}
	result.ProfilesCreated = len(stagedProfiles)
	result.ConnectionsCreated = len(stagedConns)

	s.logger.Debug("Batch applied",
		zap.Int("profiles_created", result.ProfilesCreated),
		zap.Int("connections_created", result.ConnectionsCreated),
	)
	return result, nil
}

// ClearDatabase drops every record
func (s *Store) ClearDatabase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

var _ ports.GraphStore = (*Store)(nil)
