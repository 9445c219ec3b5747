package band

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestAnchorElapsedIndependentOfConstructionTime(t *testing.T) {
	clk := clockwork.NewFakeClock()
	startAt := clk.Now().Add(4 * time.Second)

	// Two clients learn about the round at different moments: one
	// immediately, one 800ms later after a slow chart download. Both must
	// derive the identical timeline from the same absolute instant.
	early := NewAnchor(startAt, 0, clk)
	clk.Advance(800 * time.Millisecond)
	late := NewAnchor(startAt, 0, clk)

	clk.Advance(5 * time.Second)
	now := clk.Now()

	if a, b := early.ElapsedAt(now), late.ElapsedAt(now); a != b {
		t.Errorf("anchors diverged: %v vs %v", a, b)
	}
	want := now.Sub(startAt).Seconds()
	if got := early.ElapsedAt(now); got != want {
		t.Errorf("ElapsedAt = %v, want %v", got, want)
	}
}

func TestAnchorNegativeDuringCountdown(t *testing.T) {
	clk := clockwork.NewFakeClock()
	a := NewAnchor(clk.Now().Add(4*time.Second), 0, clk)

	if e := a.Elapsed(); e >= 0 {
		t.Fatalf("elapsed during countdown = %v, want negative", e)
	}

	clk.Advance(4 * time.Second)
	if e := a.Elapsed(); e != 0 {
		t.Errorf("elapsed at start instant = %v, want 0", e)
	}

	clk.Advance(1500 * time.Millisecond)
	if e := a.Elapsed(); e != 1.5 {
		t.Errorf("elapsed = %v, want 1.5", e)
	}
}

func TestAnchorCompensationShiftsZero(t *testing.T) {
	clk := clockwork.NewFakeClock()
	startAt := clk.Now().Add(4 * time.Second)

	plain := NewAnchor(startAt, 0, clk)
	shifted := NewAnchor(startAt, 60*time.Millisecond, clk)

	clk.Advance(4 * time.Second)
	now := clk.Now()
	diff := shifted.ElapsedAt(now) - plain.ElapsedAt(now)
	if diff < 0.0599 || diff > 0.0601 {
		t.Errorf("compensation offset = %v, want 0.06", diff)
	}
}
