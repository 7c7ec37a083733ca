// Package memory stores metric records in memory. Data is lost on restart.
// Useful for testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/countwatch/countwatch/pkg/storage"
)

// Store is an in-memory MetricStore. The mutex is the atomicity guarantee:
// check-and-insert runs under one lock acquisition, so racing writers on
// the same key see exactly one winner.
type Store struct {
	mu      sync.Mutex
	records map[key]storage.MetricRecord
}

type key struct {
	metricName string
	slotMilli  int64
}

// New creates an in-memory metric store.
func New() *Store {
	return &Store{records: make(map[key]storage.MetricRecord)}
}

// PutIfAbsent inserts rec only if its key is not yet present.
func (s *Store) PutIfAbsent(ctx context.Context, rec storage.MetricRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{metricName: rec.MetricName, slotMilli: rec.SlotTime.UnixMilli()}
	if _, exists := s.records[k]; exists {
		return storage.ErrAlreadyExists
	}
	s.records[k] = rec
	return nil
}

// Get retrieves a single record by key.
func (s *Store) Get(ctx context.Context, metricName string, slotTime time.Time) (storage.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key{metricName: metricName, slotMilli: slotTime.UnixMilli()}]
	if !ok {
		return storage.MetricRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

// Query retrieves records for a metric within [start, end] in slot order.
func (s *Store) Query(ctx context.Context, req storage.QueryRequest) ([]storage.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []storage.MetricRecord
	for k, rec := range s.records {
		if k.metricName != req.MetricName {
			continue
		}
		if rec.SlotTime.Before(req.Start) || rec.SlotTime.After(req.End) {
			continue
		}
		results = append(results, rec)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].SlotTime.Before(results[j].SlotTime)
	})

	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// Stats returns storage statistics.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &storage.Stats{TotalRecords: uint64(len(s.records))}
	for _, rec := range s.records {
		if stats.OldestSlot.IsZero() || rec.SlotTime.Before(stats.OldestSlot) {
			stats.OldestSlot = rec.SlotTime
		}
		if stats.NewestSlot.IsZero() || rec.SlotTime.After(stats.NewestSlot) {
			stats.NewestSlot = rec.SlotTime
		}
	}
	return stats, nil
}

// Close is a no-op for memory storage.
func (s *Store) Close() error {
	return nil
}

var _ storage.MetricStore = (*Store)(nil)
