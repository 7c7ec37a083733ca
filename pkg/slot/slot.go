// Package slot defines the 5-second time slot that is the idempotency
// granularity for recorded samples. A slot is identified by its start
// instant, which is always a multiple of 5 seconds with no sub-second part.
package slot

import "time"

// Width is the fixed slot width. The store's uniqueness key and the
// schedule expander's interval both derive from it.
const Width = 5 * time.Second

// Time truncates t to the start of its containing slot: the greatest
// multiple of 5 seconds less than or equal to t, with sub-second precision
// dropped. Inputs already on a boundary pass through unchanged.
func Time(t time.Time) time.Time {
	return t.Truncate(Width)
}

// Aligned is an instant known to sit on a slot boundary. Construct it with
// Align; consumers (the recorder's slot key in particular) can then rely on
// alignment as a type-level guarantee instead of caller discipline.
type Aligned struct {
	t time.Time
}

// Align normalizes t to its slot boundary and wraps it. Aligning an
// already-aligned instant is the identity.
func Align(t time.Time) Aligned {
	return Aligned{t: Time(t)}
}

// Time returns the underlying instant.
func (a Aligned) Time() time.Time {
	return a.t
}

// IsZero reports whether a is the zero value.
func (a Aligned) IsZero() bool {
	return a.t.IsZero()
}
