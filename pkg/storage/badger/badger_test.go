package badger

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/countwatch/countwatch/pkg/storage"
)

func TestPutIfAbsent_FirstWins(t *testing.T) {
	// Use in-memory mode for tests
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	slot := time.Date(2025, 1, 1, 0, 0, 15, 0, time.UTC)

	rec := storage.MetricRecord{MetricName: "ai_response_count", SlotTime: slot, Count: 4}
	if err := store.PutIfAbsent(ctx, rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Every subsequent attempt must observe the duplicate, whatever count
	// it carries.
	for i := 0; i < 3; i++ {
		dup := storage.MetricRecord{MetricName: "ai_response_count", SlotTime: slot, Count: int64(100 + i)}
		err := store.PutIfAbsent(ctx, dup)
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("Insert %d: expected ErrAlreadyExists, got %v", i, err)
		}
	}

	got, err := store.Get(ctx, "ai_response_count", slot)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Count != 4 {
		t.Errorf("Expected original count 4, got %d", got.Count)
	}
}

func TestPutIfAbsent_DistinctSlots(t *testing.T) {
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		rec := storage.MetricRecord{
			MetricName: "ai_response_count",
			SlotTime:   base.Add(time.Duration(i*5) * time.Second),
			Count:      int64(i),
		}
		if err := store.PutIfAbsent(ctx, rec); err != nil {
			t.Fatalf("Insert slot %d failed: %v", i, err)
		}
	}

	results, err := store.Query(ctx, storage.QueryRequest{
		MetricName: "ai_response_count",
		Start:      base,
		End:        base.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 12 {
		t.Fatalf("Expected 12 records, got %d", len(results))
	}
	for i, rec := range results {
		if rec.Count != int64(i) {
			t.Errorf("Record %d out of slot order: count=%d", i, rec.Count)
		}
	}
}

func TestQuery_RangeAndLimit(t *testing.T) {
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 24; i++ {
		rec := storage.MetricRecord{
			MetricName: "ai_response_count",
			SlotTime:   base.Add(time.Duration(i*5) * time.Second),
			Count:      int64(i),
		}
		if err := store.PutIfAbsent(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Second minute only
	results, err := store.Query(ctx, storage.QueryRequest{
		MetricName: "ai_response_count",
		Start:      base.Add(time.Minute),
		End:        base.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 12 {
		t.Errorf("Expected 12 records in second minute, got %d", len(results))
	}

	limited, err := store.Query(ctx, storage.QueryRequest{
		MetricName: "ai_response_count",
		Start:      base,
		End:        base.Add(2 * time.Minute),
		Limit:      5,
	})
	if err != nil {
		t.Fatalf("Limited query failed: %v", err)
	}
	if len(limited) != 5 {
		t.Errorf("Expected 5 records with limit, got %d", len(limited))
	}

	// Unknown metric shares no key prefix
	other, err := store.Query(ctx, storage.QueryRequest{
		MetricName: "other_metric",
		Start:      base,
		End:        base.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no records for other metric, got %d", len(other))
	}
}

func TestPersistence(t *testing.T) {
	// Use temp directory for persistence test
	tmpDir, err := os.MkdirTemp("", "countwatch-badger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	slot := time.Date(2025, 1, 1, 0, 0, 15, 0, time.UTC)

	// Write with first instance
	{
		store, err := New(Config{Path: tmpDir})
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		rec := storage.MetricRecord{MetricName: "ai_response_count", SlotTime: slot, Count: 7}
		if err := store.PutIfAbsent(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		store.Close()
	}

	// Reopen: the record survives and still blocks duplicates
	{
		store, err := New(Config{Path: tmpDir})
		if err != nil {
			t.Fatalf("Failed to reopen store: %v", err)
		}
		defer store.Close()

		got, err := store.Get(ctx, "ai_response_count", slot)
		if err != nil {
			t.Fatalf("Get after reopen failed: %v", err)
		}
		if got.Count != 7 {
			t.Errorf("Expected count 7 after reopen, got %d", got.Count)
		}

		err = store.PutIfAbsent(ctx, storage.MetricRecord{MetricName: "ai_response_count", SlotTime: slot, Count: 99})
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("Expected ErrAlreadyExists after reopen, got %v", err)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	_, err = store.Get(context.Background(), "ai_response_count", time.Now())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
