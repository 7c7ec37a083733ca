// Package recorder persists samples with at-most-one-write-per-slot
// semantics. The store's atomic insert-if-absent is the only concurrency
// primitive: under duplicate delivery every writer races on the same key
// and the store arbitrates a single winner.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/countwatch/countwatch/pkg/sampler"
	"github.com/countwatch/countwatch/pkg/slot"
	"github.com/countwatch/countwatch/pkg/storage"
	"github.com/countwatch/countwatch/pkg/window"
)

// MetricName keys every record this service writes.
const MetricName = "ai_response_count"

// Recorder writes metric records through a MetricStore.
type Recorder struct {
	store storage.MetricStore
}

// New creates a recorder over store.
func New(store storage.MetricStore) *Recorder {
	return &Recorder{store: store}
}

// Write persists sample under (MetricName, slotTime). It returns true when
// a new record was committed and false when the slot was already recorded —
// both successful outcomes. Any other store failure propagates.
//
// slotTime's alignment is a type-level guarantee of slot.Aligned, so the
// recorder never re-normalizes it.
func (r *Recorder) Write(ctx context.Context, sample sampler.Sample, slotTime slot.Aligned) (bool, error) {
	rec := storage.MetricRecord{
		MetricName: MetricName,
		SlotTime:   slotTime.Time(),
		Count:      sample.Count,
	}

	err := r.store.PutIfAbsent(ctx, rec)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// Expected under at-least-once delivery, informational only.
		log.Printf("Duplicate record prevented metric=%s slot=%s", rec.MetricName, window.FormatTime(rec.SlotTime))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to write metric record slot=%s: %w", window.FormatTime(rec.SlotTime), err)
	}

	log.Printf("Metric record written metric=%s slot=%s count=%d", rec.MetricName, window.FormatTime(rec.SlotTime), rec.Count)
	return true, nil
}
