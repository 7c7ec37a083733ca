// Package schedule expands a minute-aligned reference instant into the
// per-slot dispatch plan. The external trigger fires once per minute; the
// expander is what achieves 5-second sampling resolution by attaching an
// increasing delivery delay to each slot's message.
package schedule

import (
	"time"

	"github.com/countwatch/countwatch/pkg/window"
)

// DelayedMessage pairs a sample window with the delay (in whole seconds)
// after which the transport should deliver it.
type DelayedMessage struct {
	Window       window.Window
	DelaySeconds int
}

// GenerateDelayedMessages produces the full dispatch plan for one minute:
// perMinute entries with delays 0, interval, 2*interval, ... and windows
// tiling [ref, ref+perMinute*interval) contiguously.
//
// ref must already be minute-aligned; the expander does not re-align it.
func GenerateDelayedMessages(ref time.Time, intervalSeconds, perMinute int) []DelayedMessage {
	interval := time.Duration(intervalSeconds) * time.Second
	messages := make([]DelayedMessage, 0, perMinute)

	for i := 0; i < perMinute; i++ {
		delay := i * intervalSeconds
		from := ref.Add(time.Duration(delay) * time.Second)
		messages = append(messages, DelayedMessage{
			Window:       window.Window{From: from.UTC(), To: from.Add(interval).UTC()},
			DelaySeconds: delay,
		})
	}

	return messages
}
