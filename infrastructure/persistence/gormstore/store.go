// Package gormstore implements ports.GraphStore on a relational database
// through GORM. SQLite and PostgreSQL are supported.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const createGraphAttempts = 5

// Store is a GORM backed graph store
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// gormConfig routes GORM's own logging through zap at warn level
func gormConfig(logger *zap.Logger) *gorm.Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer, err := zap.NewStdLogAt(logger.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		writer = zap.NewStdLog(logger.Named("gorm"))
	}
	return &gorm.Config{
		TranslateError: true,
		Logger: gormLogger.New(writer, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// OpenSQLite opens a SQLite database. An empty path opens a named in-memory
// database that lives as long as the store.
func OpenSQLite(path string, logger *zap.Logger) (*Store, error) {
	dsn := path + "?_foreign_keys=on"
	if path == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", valueobjects.NewProfileID())
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection keeps transactions serialized
	sqlDB.SetMaxOpenConns(1)

	return New(db, logger)
}

// OpenPostgres connects to PostgreSQL
func OpenPostgres(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return New(db, logger)
}

// New wraps an open connection and migrates the schema
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, now: time.Now, logger: logger.Named("gorm_store")}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the tables
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&graphModel{}, &profileModel{}, &connectionModel{}); err != nil {
		return pkgerrors.NewDatabaseError("migrate", err)
	}
	return nil
}

func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return pkgerrors.NewNotFoundError("graph or profile").WithCause(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return pkgerrors.NewConflictError("record already exists").WithCause(err)
	}
	// deadlock_detected and serialization_failure mean a concurrent batch won
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && (pgErr.SQLState() == "40P01" || pgErr.SQLState() == "40001") {
		return pkgerrors.NewConflictError("concurrent write").WithCause(err)
	}
	return pkgerrors.NewDatabaseError(op, err)
}

// CreateGraph allocates and stores a new graph, drawing a new id on collision
func (s *Store) CreateGraph(ctx context.Context) (*entities.Graph, error) {
	var lastErr error
	for i := 0; i < createGraphAttempts; i++ {
		g := entities.NewGraph(s.now())
		m := graphModel{ID: g.ID, CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt}
		err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, dbError("create graph", err)
		}
		lastErr = err
	}
	return nil, dbError("create graph", lastErr)
}

// GetGraph returns the graph or nil when absent
func (s *Store) GetGraph(ctx context.Context, id string) (*entities.Graph, error) {
	var rows []graphModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, dbError("get graph", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return graphFromModel(rows[0]), nil
}

// DeleteGraph removes the graph, its connections and its profiles in one transaction
func (s *Store) DeleteGraph(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("graph_id = ?", id).Delete(&connectionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("graph_id = ?", id).Delete(&profileModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&graphModel{}).Error
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
	var rows []profileModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, dbError("get profile", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := profileFromModel(rows[0])
	return &p, nil
}

// GetProfiles lists profiles, optionally scoped to one graph
func (s *Store) GetProfiles(ctx context.Context, graphID string) ([]entities.Profile, error) {
	q := s.db.WithContext(ctx).Order("id")
	if graphID != "" {
		q = q.Where("graph_id = ?", graphID)
	}
	var rows []profileModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, dbError("list profiles", err)
	}

	out := make([]entities.Profile, len(rows))
	for i, m := range rows {
		out[i] = profileFromModel(m)
	}
	return out, nil
}

// FindProfileByName looks a profile up by its identity key
func (s *Store) FindProfileByName(ctx context.Context, graphID string, name valueobjects.PersonName) (*entities.Profile, error) {
	m, err := findByName(s.db.WithContext(ctx), graphID, name.First(), name.Last())
	if err != nil || m == nil {
		return nil, dbError("find profile", err)
	}
	p := profileFromModel(*m)
	return &p, nil
}

func findByName(tx *gorm.DB, graphID, first, last string) (*profileModel, error) {
	var rows []profileModel
	err := tx.Where("graph_id = ? AND first_name = ? AND last_name = ?", graphID, first, last).
		Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
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
	q := s.db.WithContext(ctx).Order("profile_a_id, profile_b_id, graph_id")
	if graphID != "" {
		q = q.Where("graph_id = ?", graphID)
	}
	var rows []connectionModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, dbError("list connections", err)
	}

	out := make([]entities.Connection, len(rows))
	for i, m := range rows {
		out[i] = connectionFromModel(m)
	}
	return out, nil
}

// DeleteConnection removes the edge in either orientation
func (s *Store) DeleteConnection(ctx context.Context, a, b, graphID string) error {
	conn, ok := entities.NewConnection(a, b, graphID)
	if !ok {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("profile_a_id = ? AND profile_b_id = ? AND graph_id = ?", conn.ProfileAID, conn.ProfileBID, conn.GraphID).
		Delete(&connectionModel{}).Error
	return dbError("delete connection", err)
}

// ApplyBatch writes the batch inside one transaction
func (s *Store) ApplyBatch(ctx context.Context, batch ports.Batch) (*ports.BatchResult, error) {
	if err := persistence.ValidateBatch(batch); err != nil {
		return nil, err
	}
	result := persistence.NewBatchResult(len(batch.Profiles))
	if batch.IsEmpty() {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := &batchWriter{tx: tx, result: result, graphs: map[string]bool{}, members: map[string]string{}}
		for _, p := range batch.Profiles {
			if err := w.profile(p); err != nil {
				return err
			}
		}
		for _, c := range batch.Connections {
			if err := w.connection(c); err != nil {
				return err
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

// batchWriter carries the per-transaction lookups of one ApplyBatch
type batchWriter struct {
	tx     *gorm.DB
	result *ports.BatchResult
	graphs map[string]bool
	// members maps a profile id known to exist to its graph id
	members map[string]string
}

func (w *batchWriter) requireGraph(graphID string) error {
	if exists, ok := w.graphs[graphID]; ok {
		if !exists {
			return persistence.ErrGraphNotFound(graphID)
		}
		return nil
	}
	var n int64
	if err := w.tx.Model(&graphModel{}).Where("id = ?", graphID).Count(&n).Error; err != nil {
		return err
	}
	w.graphs[graphID] = n > 0
	if n == 0 {
		return persistence.ErrGraphNotFound(graphID)
	}
	return nil
}

func (w *batchWriter) profile(p entities.Profile) error {
	if err := w.requireGraph(p.GraphID); err != nil {
		return err
	}

	existing, err := findByName(w.tx, p.GraphID, p.FirstName, p.LastName)
	if err != nil {
		return err
	}
	if existing != nil {
		w.result.ProfileIDs[p.ID] = existing.ID
		w.members[existing.ID] = existing.GraphID
		return nil
	}

	m := profileToModel(p)
	res := w.tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		w.result.ProfileIDs[p.ID] = p.ID
		w.result.ProfilesCreated++
		w.members[p.ID] = p.GraphID
		return nil
	}

	// Nothing inserted: either a concurrent writer added the same name or the id is taken
	existing, err = findByName(w.tx, p.GraphID, p.FirstName, p.LastName)
	if err != nil {
		return err
	}
	if existing == nil {
		return persistence.ErrProfileIDConflict(p.ID)
	}
	w.result.ProfileIDs[p.ID] = existing.ID
	w.members[existing.ID] = existing.GraphID
	return nil
}

func (w *batchWriter) requireMember(profileID, graphID string) error {
	if g, ok := w.members[profileID]; ok {
		if g != graphID {
			return persistence.ErrProfileNotFound(profileID, graphID)
		}
		return nil
	}
	var rows []profileModel
	if err := w.tx.Where("id = ?", profileID).Limit(1).Find(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 || rows[0].GraphID != graphID {
		return persistence.ErrProfileNotFound(profileID, graphID)
	}
	w.members[profileID] = graphID
	return nil
}

func (w *batchWriter) connection(c entities.Connection) error {
	conn, ok := entities.NewConnection(w.result.Resolve(c.ProfileAID), w.result.Resolve(c.ProfileBID), c.GraphID)
	if !ok {
		return nil
	}
	if err := w.requireGraph(conn.GraphID); err != nil {
		return err
	}
	for _, id := range []string{conn.ProfileAID, conn.ProfileBID} {
		if err := w.requireMember(id, conn.GraphID); err != nil {
			return err
		}
	}

	m := connectionModel{ProfileAID: conn.ProfileAID, ProfileBID: conn.ProfileBID, GraphID: conn.GraphID}
	res := w.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return res.Error
	}
	w.result.ConnectionsCreated += int(res.RowsAffected)
	return nil
}

// ClearDatabase deletes every row
func (s *Store) ClearDatabase(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&connectionModel{}, &profileModel{}, &graphModel{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return dbError("clear database", err)
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return pkgerrors.NewUnavailableError("database").WithCause(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return pkgerrors.NewUnavailableError("database").WithCause(err)
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ ports.GraphStore = (*Store)(nil)
