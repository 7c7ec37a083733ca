package storage

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyExists is returned by PutIfAbsent when a record with the same
// (metric name, slot time) key has already been committed. Callers treat it
// as a successful duplicate suppression, not a failure.
var ErrAlreadyExists = errors.New("record already exists")

// MetricRecord is the durable, uniquely-keyed entity. The composite key is
// (MetricName, SlotTime); Count is never mutated after the first write.
type MetricRecord struct {
	MetricName string    `json:"metricName"`
	SlotTime   time.Time `json:"slotTime"`
	Count      int64     `json:"count"`
}

// MetricStore defines the interface for metric record storage backends.
// Implementations: memory (testing), badger (production).
type MetricStore interface {
	// PutIfAbsent atomically inserts rec only if no record with the same
	// key exists. Under concurrent attempts on one key exactly one call
	// succeeds; the rest return ErrAlreadyExists.
	PutIfAbsent(ctx context.Context, rec MetricRecord) error

	// Get retrieves the record for a key, or ErrNotFound.
	Get(ctx context.Context, metricName string, slotTime time.Time) (MetricRecord, error)

	// Query retrieves records for a metric within [start, end], in slot
	// time order.
	Query(ctx context.Context, req QueryRequest) ([]MetricRecord, error)

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the storage.
	Close() error
}

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// QueryRequest specifies which records to retrieve.
type QueryRequest struct {
	MetricName string
	Start      time.Time
	End        time.Time

	// Limit caps the number of results (0 = no limit).
	Limit int
}

// Stats provides storage health and usage info.
type Stats struct {
	TotalRecords uint64    `json:"total_records"`
	OldestSlot   time.Time `json:"oldest_slot"`
	NewestSlot   time.Time `json:"newest_slot"`
}
