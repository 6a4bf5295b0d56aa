// Package dynamodb implements ports.GraphStore on a single DynamoDB table.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"go.uber.org/zap"
)

const (
	// MaxTransactItems is DynamoDB's limit on actions in one TransactWriteItems call
	MaxTransactItems = 100

	batchWriteSize     = 25
	batchWriteAttempts = 5
	createGraphRetries = 5
)

// Store is a DynamoDB backed graph store
type Store struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
	logger    *zap.Logger
}

// NewStore creates a store over an existing table
func NewStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		logger:    logger.Named("dynamodb_store"),
	}
}

func dbError(op string, err error) error {
	if err == nil || pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func marshalKey(k key) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(k)
}

func (s *Store) getItem(ctx context.Context, k key) (*item, error) {
	av, err := marshalKey(k)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            av,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// queryGraph returns every item of a graph partition whose sort key starts with prefix
func (s *Store) queryGraph(ctx context.Context, graphID, prefix string) ([]item, error) {
	keyCond := expression.Key(attrPK).Equal(expression.Value(graphPK(graphID)))
	if prefix != "" {
		keyCond = keyCond.And(expression.Key(attrSK).BeginsWith(prefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, err
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	var items []item
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var pageItems []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, err
		}
		items = append(items, pageItems...)
	}
	return items, nil
}

// scanEntities returns every item of one entity type, or every item when entityType is empty
func (s *Store) scanEntities(ctx context.Context, entityType string) ([]item, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
	}
	if entityType != "" {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name(attrEntityType).Equal(expression.Value(entityType))).
			Build()
		if err != nil {
			return nil, err
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	paginator := dynamodb.NewScanPaginator(s.client, input)
	var items []item
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var pageItems []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, err
		}
		items = append(items, pageItems...)
	}
	return items, nil
}

// CreateGraph stores a new graph, drawing a fresh id if the first one is taken
func (s *Store) CreateGraph(ctx context.Context) (*entities.Graph, error) {
	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(attrPK))).
		Build()
	if err != nil {
		return nil, dbError("create graph", err)
	}

	for attempt := 0; attempt < createGraphRetries; attempt++ {
		g := entities.NewGraph(s.now())
		av, err := attributevalue.MarshalMap(graphItem(g))
		if err != nil {
			return nil, dbError("create graph", err)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                aws.String(s.tableName),
			Item:                     av,
			ConditionExpression:      cond.Condition(),
			ExpressionAttributeNames: cond.Names(),
		})
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			continue
		}
		if err != nil {
			return nil, dbError("create graph", err)
		}
		s.logger.Debug("Graph created", zap.String("graph_id", g.ID))
		return g, nil
	}
	return nil, pkgerrors.NewConflictError("could not allocate a unique graph id")
}

// GetGraph returns the graph or nil when absent
func (s *Store) GetGraph(ctx context.Context, id string) (*entities.Graph, error) {
	it, err := s.getItem(ctx, graphKey(id))
	if err != nil {
		return nil, dbError("get graph", err)
	}
	if it == nil {
		return nil, nil
	}
	g, err := it.graph()
	if err != nil {
		return nil, dbError("get graph", err)
	}
	return g, nil
}

// DeleteGraph removes the graph partition and the global profile items it owns.
// The deletes are chunked BatchWriteItem calls and are not atomic.
func (s *Store) DeleteGraph(ctx context.Context, id string) error {
	items, err := s.queryGraph(ctx, id, "")
	if err != nil {
		return dbError("delete graph", err)
	}

	keys := make([]key, 0, len(items))
	for _, it := range items {
		// connections first, the graph item last
		if it.EntityType == entityConnection {
			keys = append(keys, key{PK: it.PK, SK: it.SK})
		}
	}
	for _, it := range items {
		if it.EntityType == entityName {
			keys = append(keys, profileKey(it.ProfileID), key{PK: it.PK, SK: it.SK})
		}
	}
	for _, it := range items {
		if it.EntityType == entityGraph {
			keys = append(keys, key{PK: it.PK, SK: it.SK})
		}
	}

	return dbError("delete graph", s.batchDelete(ctx, keys))
}

func (s *Store) batchDelete(ctx context.Context, keys []key) error {
	for start := 0; start < len(keys); start += batchWriteSize {
		end := start + batchWriteSize
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			av, err := marshalKey(k)
			if err != nil {
				return err
			}
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: av}})
		}

		pending := map[string][]types.WriteRequest{s.tableName: requests}
		for attempt := 0; len(pending[s.tableName]) > 0; attempt++ {
			if attempt >= batchWriteAttempts {
				return fmt.Errorf("%d deletes left unprocessed", len(pending[s.tableName]))
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(50<<attempt) * time.Millisecond):
				}
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
		}
	}
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
	it, err := s.getItem(ctx, profileKey(id))
	if err != nil {
		return nil, dbError("get profile", err)
	}
	if it == nil {
		return nil, nil
	}
	p := it.profile()
	return &p, nil
}

// GetProfiles lists profiles, optionally scoped to one graph
func (s *Store) GetProfiles(ctx context.Context, graphID string) ([]entities.Profile, error) {
	var items []item
	var err error
	if graphID == "" {
		items, err = s.scanEntities(ctx, entityProfile)
	} else {
		items, err = s.queryGraph(ctx, graphID, skNamePrefix)
	}
	if err != nil {
		return nil, dbError("list profiles", err)
	}

	out := make([]entities.Profile, len(items))
	for i, it := range items {
		out[i] = it.profile()
	}
	entities.SortProfiles(out)
	return out, nil
}

// FindProfileByName looks a profile up by its identity key
func (s *Store) FindProfileByName(ctx context.Context, graphID string, name valueobjects.PersonName) (*entities.Profile, error) {
	it, err := s.getItem(ctx, nameKey(graphID, name.Key()))
	if err != nil {
		return nil, dbError("find profile", err)
	}
	if it == nil {
		return nil, nil
	}
	p := it.profile()
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
	var items []item
	var err error
	if graphID == "" {
		items, err = s.scanEntities(ctx, entityConnection)
	} else {
		items, err = s.queryGraph(ctx, graphID, skConnPrefix)
	}
	if err != nil {
		return nil, dbError("list connections", err)
	}

	out := make([]entities.Connection, len(items))
	for i, it := range items {
		out[i] = it.connection()
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
	av, err := marshalKey(connectionKey(conn))
	if err != nil {
		return dbError("delete connection", err)
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       av,
	})
	return dbError("delete connection", err)
}

// ClearDatabase deletes every item in the table
func (s *Store) ClearDatabase(ctx context.Context) error {
	items, err := s.scanEntities(ctx, "")
	if err != nil {
		return dbError("clear database", err)
	}
	keys := make([]key, len(items))
	for i, it := range items {
		keys[i] = key{PK: it.PK, SK: it.SK}
	}
	return dbError("clear database", s.batchDelete(ctx, keys))
}

// Ping describes the table
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (s *Store) Close() error {
	return nil
}

var _ ports.GraphStore = (*Store)(nil)
