// Package dispatch turns the coarse once-per-minute trigger into the
// per-slot message fan-out. Each of the minute's schedule entries is
// submitted to the queue with its own delivery delay; entries fail
// independently so one bad submit costs one slot, not the minute.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/countwatch/countwatch/pkg/observe"
	"github.com/countwatch/countwatch/pkg/queue"
	"github.com/countwatch/countwatch/pkg/schedule"
)

// Dispatcher expands minutes into delayed queue messages.
type Dispatcher struct {
	queue           *queue.Queue
	intervalSeconds int
	perMinute       int
	metrics         *observe.Metrics
}

// New creates a dispatcher producing perMinute messages at
// intervalSeconds spacing.
func New(q *queue.Queue, intervalSeconds, perMinute int, metrics *observe.Metrics) *Dispatcher {
	return &Dispatcher{
		queue:           q,
		intervalSeconds: intervalSeconds,
		perMinute:       perMinute,
		metrics:         metrics,
	}
}

// DispatchMinute submits the full plan for the minute starting at ref.
// ref must be minute-aligned. Per-entry submit failures are logged and
// tolerated; only a fully failed minute returns an error, escalating to
// whatever retry the trigger runtime applies. Losing some slots is
// preferred over aborting the whole batch.
func (d *Dispatcher) DispatchMinute(ref time.Time) error {
	plan := schedule.GenerateDelayedMessages(ref, d.intervalSeconds, d.perMinute)

	failures := 0
	for _, entry := range plan {
		body, err := json.Marshal(entry.Window)
		if err != nil {
			// Windows always marshal; treat defensively as a submit failure.
			failures++
			d.metrics.DispatchFailures.Inc()
			log.Printf("Failed to encode window %s: %v", entry.Window, err)
			continue
		}

		id, err := d.queue.Submit(body, time.Duration(entry.DelaySeconds)*time.Second)
		if err != nil {
			failures++
			d.metrics.DispatchFailures.Inc()
			log.Printf("Failed to submit window %s delay=%ds: %v", entry.Window, entry.DelaySeconds, err)
			continue
		}

		d.metrics.MessagesDispatched.Inc()
		log.Printf("Message %s submitted window=%s delay=%ds", id, entry.Window, entry.DelaySeconds)
	}

	if failures == len(plan) && len(plan) > 0 {
		return fmt.Errorf("all %d schedule messages failed to submit for minute %s", len(plan), ref.UTC().Format(time.RFC3339))
	}
	if failures > 0 {
		log.Printf("Dispatched minute %s with %d/%d failures", ref.UTC().Format(time.RFC3339), failures, len(plan))
	}
	return nil
}
