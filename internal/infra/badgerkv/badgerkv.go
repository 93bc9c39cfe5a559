// Package badgerkv implements the state store on BadgerDB, as an embedded
// alternative to the SQLite store (storage.driver = "badger").
package badgerkv

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/plano-ai/plano/internal/infra/metrics"
)

// Config configures the store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory (tests, dry runs).
	InMemory bool

	SyncWrites bool

	// GCInterval is how often value-log GC runs. Zero disables it.
	GCInterval time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns a persistent configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		GCInterval: 10 * time.Minute,
	}
}

// InMemoryConfig returns a configuration for an in-memory store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// zapAdapter routes badger's internal logging through zap.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (l zapAdapter) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l zapAdapter) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l zapAdapter) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l zapAdapter) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// Store is a domain.KVStore backed by BadgerDB.
type Store struct {
	db     *badger.DB
	log    *zap.Logger
	stopGC chan struct{}
	doneGC chan struct{}
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0700); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithNumVersionsToKeep(1)

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(zapAdapter{s: log.Sugar()})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{db: db, log: log}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

// Get retrieves a value by key. The bool is false when the key is absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores one key-value pair.
func (s *Store) Set(key string, value []byte) error {
	return s.SetMany(map[string][]byte{key: value})
}

// SetMany stores all entries in one transaction.
func (s *Store) SetMany(entries map[string][]byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for k, v := range entries {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	recordWrite(err)
	return err
}

// Remove deletes the given keys in one transaction.
func (s *Store) Remove(keys ...string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	recordWrite(err)
	return err
}

// Ping reports whether the database is open.
func (s *Store) Ping() error {
	if s.db.IsClosed() {
		return errors.New("badger store is closed")
	}
	return nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration) {
	defer close(s.doneGC)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Warn("value log GC failed", zap.Error(err))
			}
		}
	}
}

func recordWrite(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreWrites.WithLabelValues("badger", result).Inc()
}
