package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/countwatch/countwatch/pkg/storage"
)

func TestPutIfAbsent_FirstWins(t *testing.T) {
	store := New()
	ctx := context.Background()
	slot := time.Date(2025, 1, 1, 0, 0, 15, 0, time.UTC)

	rec := storage.MetricRecord{MetricName: "ai_response_count", SlotTime: slot, Count: 4}
	if err := store.PutIfAbsent(ctx, rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.PutIfAbsent(ctx, storage.MetricRecord{MetricName: "ai_response_count", SlotTime: slot, Count: 9})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("Expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.Get(ctx, "ai_response_count", slot)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Count != 4 {
		t.Errorf("Expected original count 4, got %d", got.Count)
	}
}

// Concurrent writers racing on one key must produce exactly one winner.
func TestPutIfAbsent_ConcurrentSingleWinner(t *testing.T) {
	store := New()
	ctx := context.Background()
	slot := time.Date(2025, 1, 1, 0, 0, 15, 0, time.UTC)

	var wins, dups int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			err := store.PutIfAbsent(ctx, storage.MetricRecord{
				MetricName: "ai_response_count",
				SlotTime:   slot,
				Count:      n,
			})
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case errors.Is(err, storage.ErrAlreadyExists):
				atomic.AddInt64(&dups, 1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly 1 winner, got %d", wins)
	}
	if dups != 49 {
		t.Errorf("Expected 49 duplicates, got %d", dups)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 1 {
		t.Errorf("Expected 1 record, got %d", stats.TotalRecords)
	}
}

func TestQuery_OrderedAndFiltered(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of order
	for _, i := range []int{3, 0, 2, 1} {
		rec := storage.MetricRecord{
			MetricName: "ai_response_count",
			SlotTime:   base.Add(time.Duration(i*5) * time.Second),
			Count:      int64(i),
		}
		if err := store.PutIfAbsent(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.PutIfAbsent(ctx, storage.MetricRecord{MetricName: "other", SlotTime: base, Count: 99}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{
		MetricName: "ai_response_count",
		Start:      base,
		End:        base.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(results))
	}
	for i, rec := range results {
		if rec.Count != int64(i) {
			t.Errorf("Record %d not in slot order: count=%d", i, rec.Count)
		}
	}
}
