// Package badgerstore is a storage.Backend on an embedded BadgerDB.
//
// Keys:
//
//	snap/<id>/<version>  version snapshot
//	meta/<id>            ledger metadata of the instance
//	seq/instance         badger sequence handing out instance ids
//
// Ids and versions are zero padded so that prefix iteration yields
// versions in numeric order.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/signadot/tony-format/contentstore/debug"
	"github.com/signadot/tony-format/contentstore/storage"
)

type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path     string
	InMemory bool

	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, it is
	// discarded.
	Logger *slog.Logger

	// GCInterval is how often value log garbage collection runs; 0
	// disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64

	// IDLease is the number of instance ids leased from the sequence at
	// once.
	IDLease uint64
}

func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
		IDLease:        100,
	}
}

func InMemoryConfig() Config {
	return Config{
		InMemory: true,
		IDLease:  100,
	}
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
	stopGC chan struct{}
	doneGC chan struct{}
}

var _ storage.Backend = (*Store)(nil)

// Open opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	lease := cfg.IDLease
	if lease == 0 {
		lease = 1
	}
	seq, err := db.GetSequence([]byte("seq/instance"), lease)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open id sequence: %w", err)
	}
	s := &Store{db: db, seq: seq, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.doneGC)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

func snapKey(id int64, version int) []byte {
	return []byte(fmt.Sprintf("snap/%019d/%010d", id, version))
}

func snapPrefix(id int64) []byte {
	return []byte(fmt.Sprintf("snap/%019d/", id))
}

func metaKey(id int64) []byte {
	return []byte(fmt.Sprintf("meta/%019d", id))
}

func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *Store) Persist(ctx context.Context, id int64, version int, data []byte) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(snapKey(id, version), data)
	})
	if err != nil {
		return fmt.Errorf("persist %d.%d: %w", id, version, err)
	}
	if debug.Storage() {
		debug.Logf("badgerstore persist %d.%d (%d bytes)\n", id, version, len(data))
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, id int64, version int) ([]byte, error) {
	var res []byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		res, err = get(txn, snapKey(id, version))
		return err
	})
	return res, err
}

func (s *Store) Delete(ctx context.Context, id int64, version int) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		key := snapKey(id, version)
		if _, err := get(txn, key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (s *Store) Versions(ctx context.Context, id int64) ([]int, error) {
	var res []int
	prefix := snapPrefix(id)
	err := s.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			v, err := strconv.Atoi(strings.TrimPrefix(key, string(prefix)))
			if err != nil {
				s.logger.Warn("skipping invalid snapshot key", "key", key, "error", err)
				continue
			}
			res = append(res, v)
		}
		return nil
	})
	return res, err
}

func (s *Store) PutMeta(ctx context.Context, id int64, data []byte) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(metaKey(id), data)
	})
}

func (s *Store) Meta(ctx context.Context, id int64) ([]byte, error) {
	var res []byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		res, err = get(txn, metaKey(id))
		return err
	})
	return res, err
}

func (s *Store) DeleteMeta(ctx context.Context, id int64) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(metaKey(id))
	})
}

func (s *Store) NextID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

// Close stops garbage collection, returns unused leased ids and closes
// the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
	}
	var errs []error
	if err := s.seq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
