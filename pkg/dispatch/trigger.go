package dispatch

import (
	"context"
	"log"
	"time"
)

// RunTrigger fires the dispatcher once per minute at the minute boundary,
// the in-process stand-in for the external cron trigger. The tick instant
// is truncated to the minute before expansion, as the schedule expander
// requires. Dispatch errors are logged; the next tick is the retry.
func RunTrigger(ctx context.Context, d *Dispatcher) {
	// Wait out the partial minute so ticks land on boundaries.
	now := time.Now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	select {
	case <-ctx.Done():
		return
	case <-time.After(next.Sub(now)):
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	fire := func(at time.Time) {
		ref := at.UTC().Truncate(time.Minute)
		if err := d.DispatchMinute(ref); err != nil {
			log.Printf("Dispatch failed for minute %s: %v", ref.Format(time.RFC3339), err)
		}
	}

	fire(next)
	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping dispatch trigger")
			return
		case at := <-ticker.C:
			fire(at)
		}
	}
}
