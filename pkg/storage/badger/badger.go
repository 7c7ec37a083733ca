package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/countwatch/countwatch/pkg/storage"
)

// Store implements storage.MetricStore using BadgerDB (LSM tree).
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = conservative default)
	MaxMemoryMB int64
}

// New creates a BadgerDB metric store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Conservative memory bounds. BadgerDB defaults assume a server;
	// this workload is one tiny record every 5 seconds.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumCompactors(1).
		WithValueThreshold(1024).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// PutIfAbsent inserts rec only if its key is not yet present.
//
// The read-then-set runs inside one serializable Update transaction, so two
// concurrent writers racing on the same key cannot both commit: the loser
// either observes the key on read or hits a commit conflict. A conflict on
// this transaction can only mean a concurrent commit of the same key, so it
// is reported as ErrAlreadyExists too — exactly one winner, everyone else
// gets a well-defined duplicate signal.
func (s *Store) PutIfAbsent(ctx context.Context, rec storage.MetricRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := makeKey(rec.MetricName, rec.SlotTime)
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			if err == nil {
				return storage.ErrAlreadyExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check existing record: %w", err)
			}
			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if errors.Is(err, badger.ErrConflict) {
			return storage.ErrAlreadyExists
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("conditional write cancelled: %w", ctx.Err())
	}
}

// Get retrieves a single record by key.
func (s *Store) Get(ctx context.Context, metricName string, slotTime time.Time) (storage.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MetricRecord{}, err
	}

	var rec storage.MetricRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(metricName, slotTime))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return storage.MetricRecord{}, err
	}
	return rec, nil
}

// Query retrieves records for a metric within [start, end] in slot order.
// Keys are prefix-ordered by metric hash then big-endian timestamp, so the
// iterator can seek straight to the range start and stop past the end.
func (s *Store) Query(ctx context.Context, req storage.QueryRequest) ([]storage.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []storage.MetricRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix(req.MetricName)

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Seek(makeKey(req.MetricName, req.Start)); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			ts := keyTime(it.Item().Key())
			if ts.After(req.End) {
				break
			}

			var rec storage.MetricRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode record: %w", err)
			}
			results = append(results, rec)

			if req.Limit > 0 && len(results) >= req.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Stats returns storage statistics.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &storage.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			stats.TotalRecords++

			ts := keyTime(it.Item().Key())
			if stats.OldestSlot.IsZero() || ts.Before(stats.OldestSlot) {
				stats.OldestSlot = ts
			}
			if stats.NewestSlot.IsZero() || ts.After(stats.NewestSlot) {
				stats.NewestSlot = ts
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunGC runs BadgerDB's value log garbage collection.
// discardRatio: run GC if this fraction of a file can be discarded.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Close shuts down BadgerDB cleanly.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key layout: 8-byte xxhash of the metric name, then the slot time as
// big-endian unix milliseconds. Hash prefix groups one metric's records;
// the timestamp suffix keeps them iterable in slot order.
func makeKey(metricName string, slotTime time.Time) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(metricName))
	binary.BigEndian.PutUint64(key[8:16], uint64(slotTime.UnixMilli()))
	return key
}

func keyPrefix(metricName string) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(metricName))
	return prefix
}

func keyTime(key []byte) time.Time {
	return time.UnixMilli(int64(binary.BigEndian.Uint64(key[8:16]))).UTC()
}

var _ storage.MetricStore = (*Store)(nil)
