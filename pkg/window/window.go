// Package window defines the [from, to) time span a single sample covers
// and its wire encoding. Windows travel through the queue as JSON with
// ISO-8601 millisecond timestamps in UTC, matching the counter API.
package window

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeFormat is the wire format for instants: ISO-8601 with millisecond
// precision and an explicit UTC offset, e.g. 2025-01-01T00:00:15.000Z.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in the wire format, normalized to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a wire-format timestamp. Any RFC 3339 timestamp is
// accepted; the millisecond rendering is only enforced on output.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Window is an immutable [From, To) span. From never exceeds To.
type Window struct {
	From time.Time
	To   time.Time
}

// New builds a window, rejecting inverted bounds.
func New(from, to time.Time) (Window, error) {
	if from.After(to) {
		return Window{}, fmt.Errorf("window from %s after to %s", FormatTime(from), FormatTime(to))
	}
	return Window{From: from.UTC(), To: to.UTC()}, nil
}

// wire is the JSON shape shared with the queue payload and counter API.
type wire struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MarshalJSON renders the window in wire format.
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{From: FormatTime(w.From), To: FormatTime(w.To)})
}

// UnmarshalJSON parses the wire format, rejecting missing or malformed
// fields and inverted bounds.
func (w *Window) UnmarshalJSON(data []byte) error {
	var raw wire
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("malformed window payload: %w", err)
	}
	if raw.From == "" || raw.To == "" {
		return fmt.Errorf("window payload missing from/to fields")
	}
	from, err := ParseTime(raw.From)
	if err != nil {
		return err
	}
	to, err := ParseTime(raw.To)
	if err != nil {
		return err
	}
	parsed, err := New(from, to)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Parse decodes a queue message body into a window.
func Parse(body []byte) (Window, error) {
	var w Window
	if err := json.Unmarshal(body, &w); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", FormatTime(w.From), FormatTime(w.To))
}
