package neo4jstore

import (
	"context"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

const (
	cypherGraphExists = `OPTIONAL MATCH (g:Graph {id: $id}) RETURN g IS NOT NULL AS found`

	cypherProfileByName = `
OPTIONAL MATCH (p:Profile {graph_id: $graph_id, first_name: $first, last_name: $last})
OPTIONAL MATCH (taken:Profile {id: $id})
RETURN p.id AS existing, taken IS NOT NULL AS id_taken`

	cypherCreateProfile = `
CREATE (p:Profile {id: $id, first_name: $first, last_name: $last, graph_id: $graph_id})`

	// MERGE between two bound nodes locks both, so concurrent writers of
	// the same pair produce one relationship
	cypherMergeConnection = `
OPTIONAL MATCH (a:Profile {id: $a, graph_id: $graph_id})
OPTIONAL MATCH (b:Profile {id: $b, graph_id: $graph_id})
WITH a, b WHERE a IS NOT NULL AND b IS NOT NULL
MERGE (a)-[r:CONNECTED_TO {graph_id: $graph_id}]->(b)
ON CREATE SET r.created_at = $now
RETURN r.created_at = $now AS created`

	cypherMemberExists = `OPTIONAL MATCH (p:Profile {id: $id, graph_id: $graph_id}) RETURN p IS NOT NULL AS found`
)

func runSingle(ctx context.Context, tx neo4j.ExplicitTransaction, query string, params map[string]any) (*neo4j.Record, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return single(records), nil
}

func recordBool(rec *neo4j.Record, key string) bool {
	if rec == nil {
		return false
	}
	v, _, _ := neo4j.GetRecordValue[bool](rec, key)
	return v
}

// ApplyBatch resolves and writes the batch in one explicit transaction
func (s *Store) ApplyBatch(ctx context.Context, batch ports.Batch) (*ports.BatchResult, error) {
	if err := persistence.ValidateBatch(batch); err != nil {
		return nil, err
	}
	result := persistence.NewBatchResult(len(batch.Profiles))
	if batch.IsEmpty() {
		return result, nil
	}

	now := s.now().UTC().Format(time.RFC3339Nano)
	err := s.writeTx(ctx, func(tx neo4j.ExplicitTransaction) error {
		graphs := make(map[string]bool)
		requireGraph := func(id string) error {
			if graphs[id] {
				return nil
			}
			rec, err := runSingle(ctx, tx, cypherGraphExists, map[string]any{"id": id})
			if err != nil {
				return err
			}
			if !recordBool(rec, "found") {
				return persistence.ErrGraphNotFound(id)
			}
			graphs[id] = true
			return nil
		}

		for _, p := range batch.Profiles {
			if err := requireGraph(p.GraphID); err != nil {
				return err
			}
			params := map[string]any{
				"id":       p.ID,
				"first":    p.FirstName,
				"last":     p.LastName,
				"graph_id": p.GraphID,
			}
			// the transaction sees its own earlier creates, so in-batch
			// duplicates resolve here as well
			rec, err := runSingle(ctx, tx, cypherProfileByName, params)
			if err != nil {
				return err
			}
			if existing := recordString(rec, "existing"); existing != "" {
				result.ProfileIDs[p.ID] = existing
				continue
			}
			if recordBool(rec, "id_taken") {
				return persistence.ErrProfileIDConflict(p.ID)
			}

			res, err := tx.Run(ctx, cypherCreateProfile, params)
			if err != nil {
				return err
			}
			if _, err := res.Consume(ctx); err != nil {
				return err
			}
			result.ProfileIDs[p.ID] = p.ID
			result.ProfilesCreated++
		}

		seen := make(map[string]bool)
		for _, c := range batch.Connections {
			conn, ok := entities.NewConnection(result.Resolve(c.ProfileAID), result.Resolve(c.ProfileBID), c.GraphID)
			if !ok || seen[conn.Key()] {
				continue
			}
			seen[conn.Key()] = true
			if err := requireGraph(conn.GraphID); err != nil {
				return err
			}

			rec, err := runSingle(ctx, tx, cypherMergeConnection, map[string]any{
				"a":        conn.ProfileAID,
				"b":        conn.ProfileBID,
				"graph_id": conn.GraphID,
				"now":      now,
			})
			if err != nil {
				return err
			}
			if rec == nil {
				return s.missingEndpoint(ctx, tx, conn)
			}
			if recordBool(rec, "created") {
				result.ConnectionsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError("apply batch", err)
	}

	s.logger.Debug("Batch applied",
		zap.Int("profiles_created", result.ProfilesCreated),
		zap.Int("connections_created", result.ConnectionsCreated),
	)
	return result, nil
}

// missingEndpoint names the endpoint that made a connection write match nothing
func (s *Store) missingEndpoint(ctx context.Context, tx neo4j.ExplicitTransaction, conn entities.Connection) error {
	rec, err := runSingle(ctx, tx, cypherMemberExists, map[string]any{"id": conn.ProfileAID, "graph_id": conn.GraphID})
	if err != nil {
		return err
	}
	if !recordBool(rec, "found") {
		return persistence.ErrProfileNotFound(conn.ProfileAID, conn.GraphID)
	}
	return persistence.ErrProfileNotFound(conn.ProfileBID, conn.GraphID)
}
