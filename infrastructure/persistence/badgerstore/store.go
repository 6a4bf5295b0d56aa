// Package badgerstore implements ports.GraphStore on an embedded BadgerDB.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	"github.com/narulaskaran/social-graph/infrastructure/persistence"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"go.uber.org/zap"
)

// Config holds configuration for a Badger backed store
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration
}

// Store keeps graphs in BadgerDB. Writes are serialized by a mutex so
// ApplyBatch validates and commits against a stable view.
type Store struct {
	db     *badger.DB
	writeM sync.Mutex
	now    func() time.Time
	logger *zap.Logger

	stopGC chan struct{}
	gcDone chan struct{}
}

type zapBadgerLogger struct {
	logger *zap.SugaredLogger
}

func (l zapBadgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l zapBadgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Infof is demoted to debug; badger is chatty at info level
func (l zapBadgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l zapBadgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Open opens the database described by cfg
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("badger_store")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required for persistent storage")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapBadgerLogger{logger: logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, now: time.Now, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn("Value log GC failed", zap.Error(err))
					}
					break
				}
			}
		}
	}
}

func dbError(op string, err error) error {
	if err == nil || pkgerrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, badger.ErrConflict) {
		return pkgerrors.NewConflictError("concurrent write").WithCause(err)
	}
	if errors.Is(err, badger.ErrTxnTooBig) {
		return pkgerrors.NewValidationError("batch too large").WithCause(err)
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func getJSON(txn *badger.Txn, key []byte, out interface{}) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scan calls fn for each key under prefix
func scan(txn *badger.Txn, prefix []byte, withValues bool, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = withValues
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

// CreateGraph allocates and stores a new graph
func (s *Store) CreateGraph(ctx context.Context) (*entities.Graph, error) {
	s.writeM.Lock()
	defer s.writeM.Unlock()

	var g *entities.Graph
	err := s.db.Update(func(txn *badger.Txn) error {
		for {
			g = entities.NewGraph(s.now())
			taken, err := exists(txn, graphKey(g.ID))
			if err != nil {
				return err
			}
			if !taken {
				return setJSON(txn, graphKey(g.ID), g)
			}
		}
	})
	if err != nil {
		return nil, dbError("create graph", err)
	}
	return g, nil
}

// GetGraph returns the graph or nil when absent
func (s *Store) GetGraph(ctx context.Context, id string) (*entities.Graph, error) {
	var g entities.Graph
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, graphKey(id), &g)
		return err
	})
	if err != nil {
		return nil, dbError("get graph", err)
	}
	if !found {
		return nil, nil
	}
	return &g, nil
}

// DeleteGraph removes the graph and everything under it in one transaction.
// An empty id names no graph; it must not fall through to the global prefixes.
func (s *Store) DeleteGraph(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	s.writeM.Lock()
	defer s.writeM.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		if err := scan(txn, connectionPrefix(id), false, func(item *badger.Item) error {
			keys = append(keys, item.KeyCopy(nil))
			return nil
		}); err != nil {
			return err
		}
		if err := scan(txn, namePrefix(id), true, func(item *badger.Item) error {
			keys = append(keys, item.KeyCopy(nil))
			return item.Value(func(val []byte) error {
				keys = append(keys, profileKey(string(val)))
				return nil
			})
		}); err != nil {
			return err
		}
		keys = append(keys, graphKey(id))

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
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
	var p entities.Profile
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, profileKey(id), &p)
		return err
	})
	if err != nil {
		return nil, dbError("get profile", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

// GetProfiles lists profiles, optionally scoped to one graph
func (s *Store) GetProfiles(ctx context.Context, graphID string) ([]entities.Profile, error) {
	out := make([]entities.Profile, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		if graphID == "" {
			return scan(txn, []byte(prefixProfile), true, func(item *badger.Item) error {
				return item.Value(func(val []byte) error {
					var p entities.Profile
					if err := json.Unmarshal(val, &p); err != nil {
						return err
					}
					out = append(out, p)
					return nil
				})
			})
		}

		var ids []string
		if err := scan(txn, namePrefix(graphID), true, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
		}); err != nil {
			return err
		}
		for _, id := range ids {
			var p entities.Profile
			found, err := getJSON(txn, profileKey(id), &p)
			if err != nil {
				return err
			}
			if found {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError("list profiles", err)
	}
	entities.SortProfiles(out)
	return out, nil
}

// FindProfileByName looks a profile up by its identity key
func (s *Store) FindProfileByName(ctx context.Context, graphID string, name valueobjects.PersonName) (*entities.Profile, error) {
	var p entities.Profile
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		id, ok, err := lookupName(txn, graphID, name.Key())
		if err != nil || !ok {
			return err
		}
		found, err = getJSON(txn, profileKey(id), &p)
		return err
	})
	if err != nil {
		return nil, dbError("find profile", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

func lookupName(txn *badger.Txn, graphID, identity string) (string, bool, error) {
	item, err := txn.Get(nameKey(graphID, identity))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(val), true, nil
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
	out := make([]entities.Connection, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, connectionPrefix(graphID), true, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				var c entities.Connection
				if err := json.Unmarshal(val, &c); err != nil {
					return err
				}
				out = append(out, c)
				return nil
			})
		})
	})
	if err != nil {
		return nil, dbError("list connections", err)
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

	s.writeM.Lock()
	defer s.writeM.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(connectionKey(conn.GraphID, conn.ProfileAID, conn.ProfileBID))
	})
	return dbError("delete connection", err)
}

// ApplyBatch validates and writes the batch in one Badger transaction
func (s *Store) ApplyBatch(ctx context.Context, batch ports.Batch) (*ports.BatchResult, error) {
	if err := persistence.ValidateBatch(batch); err != nil {
		return nil, err
	}
	result := persistence.NewBatchResult(len(batch.Profiles))
	if batch.IsEmpty() {
		return result, nil
	}

	s.writeM.Lock()
	defer s.writeM.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		graphs := make(map[string]bool)
		requireGraph := func(id string) error {
			ok, seen := graphs[id]
			if !seen {
				var err error
				if ok, err = exists(txn, graphKey(id)); err != nil {
					return err
				}
				graphs[id] = ok
			}
			if !ok {
				return persistence.ErrGraphNotFound(id)
			}
			return nil
		}

		// the transaction reads its own writes, so names staged earlier in
		// the batch resolve like stored ones
		for _, p := range batch.Profiles {
			if err := requireGraph(p.GraphID); err != nil {
				return err
			}
			id, found, err := lookupName(txn, p.GraphID, p.NameKey())
			if err != nil {
				return err
			}
			if found {
				result.ProfileIDs[p.ID] = id
				continue
			}
			taken, err := exists(txn, profileKey(p.ID))
			if err != nil {
				return err
			}
			if taken {
				return persistence.ErrProfileIDConflict(p.ID)
			}
			if err := setJSON(txn, profileKey(p.ID), p); err != nil {
				return err
			}
			if err := txn.Set(nameKey(p.GraphID, p.NameKey()), []byte(p.ID)); err != nil {
				return err
			}
			result.ProfileIDs[p.ID] = p.ID
			result.ProfilesCreated++
		}

		for _, c := range batch.Connections {
			conn, ok := entities.NewConnection(result.Resolve(c.ProfileAID), result.Resolve(c.ProfileBID), c.GraphID)
			if !ok {
				continue
			}
			if err := requireGraph(conn.GraphID); err != nil {
				return err
			}
			for _, id := range []string{conn.ProfileAID, conn.ProfileBID} {
				var p entities.Profile
				found, err := getJSON(txn, profileKey(id), &p)
				if err != nil {
					return err
				}
				if !found || p.GraphID != conn.GraphID {
					return persistence.ErrProfileNotFound(id, conn.GraphID)
				}
			}
			key := connectionKey(conn.GraphID, conn.ProfileAID, conn.ProfileBID)
			present, err := exists(txn, key)
			if err != nil {
				return err
			}
			if present {
				continue
			}
			if err := setJSON(txn, key, conn); err != nil {
				return err
			}
			result.ConnectionsCreated++
		}
		return nil
	})
	if err != nil {
		return nil, dbError("apply batch", err)
	}
	return result, nil
}

// ClearDatabase drops every key
func (s *Store) ClearDatabase(ctx context.Context) error {
	s.writeM.Lock()
	defer s.writeM.Unlock()
	return dbError("clear database", s.db.DropAll())
}

// Ping reports whether the database is open
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return pkgerrors.NewUnavailableError("badger")
	}
	return nil
}

// Close stops GC and closes the database
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
		s.stopGC = nil
	}
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

var _ ports.GraphStore = (*Store)(nil)
