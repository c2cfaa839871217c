// Package system provides the wall clock used to stamp received batches.
package system

import "time"

// Precision matches the resolution of a Postgres timestamptz column.
const Precision = time.Microsecond

// Clock implements crawler.Clock using time.Now.
type Clock struct {
	precision time.Duration
}

// New creates a Clock that reports UTC truncated to Precision.
func New() *Clock {
	return &Clock{precision: Precision}
}

// Now returns the current UTC time.
func (c *Clock) Now() time.Time {
	now := time.Now().UTC()
	if c == nil || c.precision <= 0 {
		return now
	}
	return now.Truncate(c.precision)
}
