package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"go.uber.org/zap"
)

// txAction remembers what each transaction item guards so a cancellation
// reason can be turned into the matching error
type txAction struct {
	onFailure func() error
}

// txBuilder accumulates the items of one TransactWriteItems call
type txBuilder struct {
	table   string
	items   []types.TransactWriteItem
	actions []txAction
	writes  int
}

func (b *txBuilder) put(it item, guard bool, action txAction) error {
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}
	put := &types.Put{TableName: aws.String(b.table), Item: av}
	if guard {
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeNotExists(expression.Name(attrPK))).
			Build()
		if err != nil {
			return err
		}
		put.ConditionExpression = expr.Condition()
		put.ExpressionAttributeNames = expr.Names()
	}
	b.items = append(b.items, types.TransactWriteItem{Put: put})
	b.actions = append(b.actions, action)
	b.writes++
	return nil
}

func (b *txBuilder) check(k key, cond expression.ConditionBuilder, action txAction) error {
	av, err := marshalKey(k)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return err
	}
	b.items = append(b.items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:                 aws.String(b.table),
		Key:                       av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}})
	b.actions = append(b.actions, action)
	return nil
}

// ApplyBatch resolves names with consistent reads, then commits every new
// item in one TransactWriteItems call. Puts are conditional on the item being
// absent and every referenced graph or pre-existing endpoint is guarded by a
// ConditionCheck, so a race that slips between the reads and the commit
// cancels the whole transaction.
func (s *Store) ApplyBatch(ctx context.Context, batch ports.Batch) (*ports.BatchResult, error) {
	if err := persistence.ValidateBatch(batch); err != nil {
		return nil, err
	}
	result := persistence.NewBatchResult(len(batch.Profiles))
	if batch.IsEmpty() {
		return result, nil
	}

	tx := &txBuilder{table: s.tableName}
	graphs := make(map[string]bool)
	staged := make(map[string]entities.Profile)
	stagedNames := make(map[string]string)

	requireGraph := func(graphID string) error {
		if graphs[graphID] {
			return nil
		}
		it, err := s.getItem(ctx, graphKey(graphID))
		if err != nil {
			return err
		}
		if it == nil {
			return persistence.ErrGraphNotFound(graphID)
		}
		graphs[graphID] = true
		return tx.check(graphKey(graphID),
			expression.AttributeExists(expression.Name(attrPK)),
			txAction{onFailure: func() error { return persistence.ErrGraphNotFound(graphID) }})
	}

	for _, p := range batch.Profiles {
		if err := requireGraph(p.GraphID); err != nil {
			return nil, dbError("apply batch", err)
		}
		nk := p.GraphID + "\x00" + p.NameKey()
		if id, ok := stagedNames[nk]; ok {
			result.ProfileIDs[p.ID] = id
			continue
		}
		existing, err := s.getItem(ctx, nameKey(p.GraphID, p.NameKey()))
		if err != nil {
			return nil, dbError("apply batch", err)
		}
		if existing != nil {
			result.ProfileIDs[p.ID] = existing.ProfileID
			continue
		}
		if _, dup := staged[p.ID]; dup {
			return nil, persistence.ErrProfileIDConflict(p.ID)
		}

		profile := p
		conflict := txAction{onFailure: func() error {
			return pkgerrors.NewConflictError("profile was written concurrently").
				WithDetail("profile_id", profile.ID)
		}}
		if err := tx.put(nameItem(p), true, conflict); err != nil {
			return nil, dbError("apply batch", err)
		}
		if err := tx.put(profileItem(p), true, txAction{onFailure: func() error {
			return persistence.ErrProfileIDConflict(profile.ID)
		}}); err != nil {
			return nil, dbError("apply batch", err)
		}
		staged[p.ID] = p
		stagedNames[nk] = p.ID
		result.ProfileIDs[p.ID] = p.ID
	}

	existingConns := make(map[string]map[string]bool)
	checkedEndpoints := make(map[string]bool)
	seenConns := make(map[string]bool)
	for _, c := range batch.Connections {
		conn, ok := entities.NewConnection(result.Resolve(c.ProfileAID), result.Resolve(c.ProfileBID), c.GraphID)
		if !ok || seenConns[conn.Key()] {
			continue
		}
		seenConns[conn.Key()] = true
		if err := requireGraph(conn.GraphID); err != nil {
			return nil, dbError("apply batch", err)
		}

		present, ok := existingConns[conn.GraphID]
		if !ok {
			items, err := s.queryGraph(ctx, conn.GraphID, skConnPrefix)
			if err != nil {
				return nil, dbError("apply batch", err)
			}
			present = make(map[string]bool, len(items))
			for _, it := range items {
				present[it.connection().Key()] = true
			}
			existingConns[conn.GraphID] = present
		}

		for _, id := range []string{conn.ProfileAID, conn.ProfileBID} {
			if p, ok := staged[id]; ok {
				if p.GraphID != conn.GraphID {
					return nil, persistence.ErrProfileNotFound(id, conn.GraphID)
				}
				continue
			}
			if checkedEndpoints[id] {
				continue
			}
			checkedEndpoints[id] = true
			endpoint, graphID := id, conn.GraphID
			err := tx.check(profileKey(id),
				expression.Name(attrGraphID).Equal(expression.Value(graphID)),
				txAction{onFailure: func() error { return persistence.ErrProfileNotFound(endpoint, graphID) }})
			if err != nil {
				return nil, dbError("apply batch", err)
			}
		}

		if present[conn.Key()] {
			continue
		}
		// connection puts are idempotent overwrites
		if err := tx.put(connectionItem(conn), false, txAction{}); err != nil {
			return nil, dbError("apply batch", err)
		}
		result.ConnectionsCreated++
	}

	if len(tx.items) > MaxTransactItems {
		return nil, pkgerrors.NewValidationErrorf(
			"batch needs %d transactional writes, DynamoDB allows %d", len(tx.items), MaxTransactItems)
	}
	if tx.writes == 0 {
		return result, nil
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx.items})
	if err != nil {
		return nil, s.translateCancel(err, tx)
	}
	result.ProfilesCreated = len(staged)

	s.logger.Debug("Batch applied",
		zap.Int("profiles_created", result.ProfilesCreated),
		zap.Int("connections_created", result.ConnectionsCreated),
	)
	return result, nil
}

func (s *Store) translateCancel(err error, tx *txBuilder) error {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return dbError("apply batch", err)
	}

	for i, reason := range canceled.CancellationReasons {
		code := aws.ToString(reason.Code)
		switch code {
		case "", "None":
			continue
		case "ConditionalCheckFailed":
			if i < len(tx.actions) && tx.actions[i].onFailure != nil {
				return tx.actions[i].onFailure()
			}
		case "TransactionConflict":
			return pkgerrors.NewConflictError("transaction conflicted with a concurrent write").WithCause(err)
		}
	}
	return dbError("apply batch", err)
}
