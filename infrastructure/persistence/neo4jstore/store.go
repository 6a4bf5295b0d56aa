// Package neo4jstore implements ports.GraphStore on Neo4j. Profiles are
// nodes and each canonical connection is one CONNECTED_TO relationship
// pointing from the lower profile id to the higher.
package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Config holds connection settings
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	MaxPool  int
	Timeout  time.Duration
}

// Store is a Neo4j backed graph store
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	now      func() time.Time
	logger   *zap.Logger
}

var schema = []string{
	`CREATE CONSTRAINT graph_id_unique IF NOT EXISTS FOR (g:Graph) REQUIRE g.id IS UNIQUE`,
	`CREATE CONSTRAINT profile_id_unique IF NOT EXISTS FOR (p:Profile) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT profile_name_unique IF NOT EXISTS FOR (p:Profile) REQUIRE (p.graph_id, p.first_name, p.last_name) IS UNIQUE`,
	`CREATE INDEX profile_graph_idx IF NOT EXISTS FOR (p:Profile) ON (p.graph_id)`,
}

// Open connects, verifies connectivity and ensures the schema
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxPool <= 0 {
		cfg.MaxPool = 50
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPool
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := &Store{driver: driver, database: cfg.Database, now: time.Now, logger: logger.Named("neo4j_store")}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates constraints and indexes
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := neo4j.ExecuteQuery(ctx, s.driver, stmt, nil, neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database)); err != nil {
			return pkgerrors.NewDatabaseError("ensure schema", err)
		}
	}
	return nil
}

func (s *Store) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// writeTx runs fn in one explicit transaction. Explicit transactions are not
// retried by the driver, so every failure surfaces to the caller.
func (s *Store) writeTx(ctx context.Context, fn func(tx neo4j.ExplicitTransaction) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func dbError(op string, err error) error {
	if err == nil || pkgerrors.IsAppError(err) {
		return err
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		switch {
		case neoErr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed":
			return pkgerrors.NewConflictError("unique constraint violated").WithCause(err)
		case strings.HasPrefix(neoErr.Code, "Neo.TransientError.Transaction."):
			return pkgerrors.NewConflictError("transaction conflicted with a concurrent write").WithCause(err)
		}
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func single(records []*neo4j.Record) *neo4j.Record {
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

func recordString(rec *neo4j.Record, key string) string {
	v, _, _ := neo4j.GetRecordValue[string](rec, key)
	return v
}

func profileFromRecord(rec *neo4j.Record) entities.Profile {
	return entities.Profile{
		ID:        recordString(rec, "id"),
		FirstName: recordString(rec, "first_name"),
		LastName:  recordString(rec, "last_name"),
		GraphID:   recordString(rec, "graph_id"),
	}
}

const profileReturn = `RETURN p.id AS id, p.first_name AS first_name, p.last_name AS last_name, p.graph_id AS graph_id`

// CreateGraph allocates and stores a new graph
func (s *Store) CreateGraph(ctx context.Context) (*entities.Graph, error) {
	for attempt := 0; attempt < 5; attempt++ {
		g := entities.NewGraph(s.now())
		_, err := neo4j.ExecuteQuery(ctx, s.driver,
			`CREATE (g:Graph {id: $id, created_at: $created_at, updated_at: $updated_at})`,
			map[string]any{
				"id":         g.ID,
				"created_at": g.CreatedAt.Format(time.RFC3339Nano),
				"updated_at": g.UpdatedAt.Format(time.RFC3339Nano),
			},
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
		if err == nil {
			return g, nil
		}
		if err := dbError("create graph", err); !pkgerrors.IsConflict(err) {
			return nil, err
		}
	}
	return nil, pkgerrors.NewConflictError("could not allocate a unique graph id")
}

// GetGraph returns the graph or nil when absent
func (s *Store) GetGraph(ctx context.Context, id string) (*entities.Graph, error) {
	records, err := s.read(ctx,
		`MATCH (g:Graph {id: $id}) RETURN g.id AS id, g.created_at AS created_at, g.updated_at AS updated_at`,
		map[string]any{"id": id})
	if err != nil {
		return nil, dbError("get graph", err)
	}
	rec := single(records)
	if rec == nil {
		return nil, nil
	}

	created, err := time.Parse(time.RFC3339Nano, recordString(rec, "created_at"))
	if err != nil {
		return nil, dbError("get graph", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, recordString(rec, "updated_at"))
	if err != nil {
		return nil, dbError("get graph", err)
	}
	return &entities.Graph{ID: recordString(rec, "id"), CreatedAt: created, UpdatedAt: updated}, nil
}

// DeleteGraph detaches and deletes the graph and its profiles
func (s *Store) DeleteGraph(ctx context.Context, id string) error {
	err := s.writeTx(ctx, func(tx neo4j.ExplicitTransaction) error {
		res, err := tx.Run(ctx, `
MATCH (p:Profile {graph_id: $id})
DETACH DELETE p`, map[string]any{"id": id})
		if err != nil {
			return err
		}
		if _, err := res.Consume(ctx); err != nil {
			return err
		}
		res, err = tx.Run(ctx, `MATCH (g:Graph {id: $id}) DETACH DELETE g`, map[string]any{"id": id})
		if err != nil {
			return err
		}
		_, err = res.Consume(ctx)
		return err
	})
	return dbError("delete graph", err)
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
	records, err := s.read(ctx, `MATCH (p:Profile {id: $id}) `+profileReturn, map[string]any{"id": id})
	if err != nil {
		return nil, dbError("get profile", err)
	}
	rec := single(records)
	if rec == nil {
		return nil, nil
	}
	p := profileFromRecord(rec)
	return &p, nil
}

// GetProfiles lists profiles, optionally scoped to one graph
func (s *Store) GetProfiles(ctx context.Context, graphID string) ([]entities.Profile, error) {
	query := `MATCH (p:Profile) WHERE $graph_id = '' OR p.graph_id = $graph_id ` + profileReturn + ` ORDER BY id`
	records, err := s.read(ctx, query, map[string]any{"graph_id": graphID})
	if err != nil {
		return nil, dbError("list profiles", err)
	}

	out := make([]entities.Profile, len(records))
	for i, rec := range records {
		out[i] = profileFromRecord(rec)
	}
	return out, nil
}

// FindProfileByName looks a profile up by its identity key
func (s *Store) FindProfileByName(ctx context.Context, graphID string, name valueobjects.PersonName) (*entities.Profile, error) {
	records, err := s.read(ctx,
		`MATCH (p:Profile {graph_id: $graph_id, first_name: $first, last_name: $last}) `+profileReturn,
		map[string]any{"graph_id": graphID, "first": name.First(), "last": name.Last()})
	if err != nil {
		return nil, dbError("find profile", err)
	}
	rec := single(records)
	if rec == nil {
		return nil, nil
	}
	p := profileFromRecord(rec)
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
	records, err := s.read(ctx, `
MATCH (a:Profile)-[r:CONNECTED_TO]->(b:Profile)
WHERE $graph_id = '' OR r.graph_id = $graph_id
RETURN a.id AS a, b.id AS b, r.graph_id AS graph_id
ORDER BY a, b, graph_id`, map[string]any{"graph_id": graphID})
	if err != nil {
		return nil, dbError("list connections", err)
	}

	out := make([]entities.Connection, len(records))
	for i, rec := range records {
		out[i] = entities.Connection{
			ProfileAID: recordString(rec, "a"),
			ProfileBID: recordString(rec, "b"),
			GraphID:    recordString(rec, "graph_id"),
		}
	}
	return out, nil
}

// DeleteConnection removes the edge in either orientation
func (s *Store) DeleteConnection(ctx context.Context, a, b, graphID string) error {
	conn, ok := entities.NewConnection(a, b, graphID)
	if !ok {
		return nil
	}
	err := s.writeTx(ctx, func(tx neo4j.ExplicitTransaction) error {
		res, err := tx.Run(ctx, `
MATCH (:Profile {id: $a})-[r:CONNECTED_TO {graph_id: $graph_id}]->(:Profile {id: $b})
DELETE r`, map[string]any{"a": conn.ProfileAID, "b": conn.ProfileBID, "graph_id": conn.GraphID})
		if err != nil {
			return err
		}
		_, err = res.Consume(ctx)
		return err
	})
	return dbError("delete connection", err)
}

// ClearDatabase deletes every node and relationship
func (s *Store) ClearDatabase(ctx context.Context) error {
	err := s.writeTx(ctx, func(tx neo4j.ExplicitTransaction) error {
		res, err := tx.Run(ctx, `MATCH (n) WHERE n:Graph OR n:Profile DETACH DELETE n`, nil)
		if err != nil {
			return err
		}
		_, err = res.Consume(ctx)
		return err
	})
	return dbError("clear database", err)
}

// Ping verifies connectivity
func (s *Store) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return pkgerrors.NewUnavailableError("neo4j").WithCause(err)
	}
	return nil
}

// Close closes the driver
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

var _ ports.GraphStore = (*Store)(nil)
