package band

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Anchor converts a single absolute wall-clock instant into a local elapsed
// time shared by every client of a round.
//
// The anchor is always computed from the absolute start instant, never from
// "time remaining when the message arrived": delivery latency (network plus
// chart download, up to hundreds of milliseconds) must not leak into the
// timeline as a systematic error.
type Anchor struct {
	zero  time.Time
	local clockwork.Clock
}

// NewAnchor anchors the timeline on startAt, shifted by an optional fixed
// latency-compensation offset. A nil clock means wall clock.
func NewAnchor(startAt time.Time, compensation time.Duration, local clockwork.Clock) *Anchor {
	if local == nil {
		local = clockwork.NewRealClock()
	}
	return &Anchor{zero: startAt.Add(-compensation), local: local}
}

// Elapsed returns fractional seconds since the anchor. Negative during the
// countdown. It is a pure function of the local clock and must be queried
// every frame, not cached.
func (a *Anchor) Elapsed() float64 {
	return a.ElapsedAt(a.local.Now())
}

// ElapsedAt returns fractional seconds between the anchor and now,
// independent of when the Anchor was constructed.
func (a *Anchor) ElapsedAt(now time.Time) float64 {
	return now.Sub(a.zero).Seconds()
}

// StartAt returns the compensated zero instant.
func (a *Anchor) StartAt() time.Time { return a.zero }
