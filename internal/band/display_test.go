package band

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestDisplayStateProgression(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDisplay(clk)

	if d.State() != DisplayWaiting {
		t.Fatalf("idle state = %s, want waiting", d.State())
	}

	d.StartRound("r1", "deepdown", clk.Now().Add(4*time.Second), testChart())
	if d.State() != DisplayCountdown {
		t.Errorf("state before start instant = %s, want countdown", d.State())
	}

	clk.Advance(4 * time.Second)
	if d.State() != DisplayPlaying {
		t.Errorf("state after start instant = %s, want playing", d.State())
	}

	d.Stop()
	if d.State() != DisplayWaiting {
		t.Errorf("state after stop = %s, want waiting", d.State())
	}
}

func TestDisplayRepeatedStartIgnored(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDisplay(clk)

	startAt := clk.Now().Add(4 * time.Second)
	d.StartRound("r1", "deepdown", startAt, testChart())
	d.ApplyHit("ale", 100)

	// A duplicate broadcast that slipped past client dedup must not restart
	// the round or wipe the aggregate.
	d.StartRound("r1", "deepdown", startAt, testChart())
	if lb := d.Leaderboard(); len(lb) != 1 || lb[0].Score != 100 {
		t.Errorf("repeated start reset the aggregate: %+v", lb)
	}

	// A different round id does replace the round.
	d.StartRound("r2", "deepdown", clk.Now().Add(4*time.Second), testChart())
	if lb := d.Leaderboard(); len(lb) != 0 {
		t.Errorf("new round kept stale players: %+v", lb)
	}
}

func TestDisplayAggregatesBroadcasts(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDisplay(clk)
	d.StartRound("r1", "deepdown", clk.Now(), testChart())

	d.ApplyHit("ale", 100)
	d.ApplyHit("ale", 60)
	d.ApplyHit("bea", 30)
	d.ApplyMiss("ale")

	lb := d.Leaderboard()
	if len(lb) != 2 {
		t.Fatalf("players = %d, want 2", len(lb))
	}
	if lb[0].Nickname != "ale" || lb[0].Score != 160 {
		t.Errorf("leader = %+v, want ale with 160", lb[0])
	}
	if lb[0].Combo != 0 {
		t.Errorf("ale combo after miss = %d, want 0", lb[0].Combo)
	}
	if lb[1].Combo != 1 {
		t.Errorf("bea combo = %d, want 1", lb[1].Combo)
	}
}

func TestDisplayEnergyBumpAndDecay(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDisplay(clk)
	d.StartRound("r1", "deepdown", clk.Now(), testChart())

	if d.Energy() != 0 {
		t.Fatalf("idle energy = %v, want 0", d.Energy())
	}

	d.ApplyHit("ale", 100)
	if e := d.Energy(); e < 0.34 || e > 0.36 {
		t.Errorf("energy after one hit = %v, want ~0.35", e)
	}

	d.ApplyHit("ale", 100)
	d.ApplyHit("ale", 100)
	d.ApplyHit("ale", 100)
	if e := d.Energy(); e > 1.0 {
		t.Errorf("energy = %v, must be clamped at 1", e)
	}

	clk.Advance(1 * time.Second)
	mid := d.Energy()
	if mid <= 0 || mid >= 1.0 {
		t.Errorf("energy after 1s = %v, want decayed but nonzero", mid)
	}

	clk.Advance(3 * time.Second)
	if e := d.Energy(); e != 0 {
		t.Errorf("energy after full decay window = %v, want 0", e)
	}
}

func TestDisplayFrameZeroSizeSkipped(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDisplay(clk)
	d.StartRound("r1", "deepdown", clk.Now(), testChart())

	if _, ok := d.Frame(0, 480); ok {
		t.Errorf("zero-width frame should be skipped")
	}
	if _, ok := d.Frame(640, 0); ok {
		t.Errorf("zero-height frame should be skipped")
	}

	// The next real-size frame renders normally, no restart needed.
	snap, ok := d.Frame(640, 480)
	if !ok || snap == nil {
		t.Fatalf("frame skipped at real size")
	}
	if snap.State != DisplayPlaying {
		t.Errorf("frame state = %s, want playing", snap.State)
	}
}

func TestDisplayFrameCountdownValue(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDisplay(clk)
	d.StartRound("r1", "deepdown", clk.Now().Add(4*time.Second), testChart())

	snap, ok := d.Frame(640, 480)
	if !ok {
		t.Fatalf("frame skipped")
	}
	if snap.State != DisplayCountdown || snap.Countdown != 4 {
		t.Errorf("countdown snapshot = %s/%d, want countdown/4", snap.State, snap.Countdown)
	}

	clk.Advance(3500 * time.Millisecond)
	snap, _ = d.Frame(640, 480)
	if snap.Countdown != 1 {
		t.Errorf("countdown at -0.5s = %d, want 1", snap.Countdown)
	}
}

func TestDisplayStopClearsEverything(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDisplay(clk)
	d.StartRound("r1", "deepdown", clk.Now(), testChart())
	d.ApplyHit("ale", 100)

	d.Stop()

	snap, ok := d.Frame(640, 480)
	if !ok {
		t.Fatalf("frame skipped")
	}
	if snap.Score != 0 || snap.Energy != 0 || len(snap.Players) != 0 {
		t.Errorf("stop left state behind: %+v", snap)
	}
	if d.RoundID() != "" {
		t.Errorf("round id survives stop")
	}
}
