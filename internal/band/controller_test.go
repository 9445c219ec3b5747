package band

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/encorelive/encore/internal/realtime"
)

// fakeCharts serves in-memory charts keyed by song/role.
type fakeCharts struct {
	charts map[string][]Note
	err    error
}

func (f *fakeCharts) Chart(song, role string) ([]Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	chart, ok := f.charts[song+"/"+role]
	if !ok {
		return nil, errors.New("chart not found")
	}
	return chart, nil
}

// fakeNotifier records outward hit/miss feedback.
type fakeNotifier struct {
	mu     sync.Mutex
	hits   []realtime.BandHitPayload
	misses []realtime.BandMissPayload
	err    error
}

func (f *fakeNotifier) NotifyHit(p realtime.BandHitPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, p)
	return f.err
}

func (f *fakeNotifier) NotifyMiss(p realtime.BandMissPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misses = append(f.misses, p)
	return f.err
}

func newTestController(clk clockwork.Clock) (*Controller, *fakeNotifier) {
	charts := &fakeCharts{charts: map[string][]Note{
		"deepdown/guitar": {{Time: 0.0, Lane: 0}, {Time: 1.0, Lane: 1}},
		"deepdown/drums":  {{Time: 0.5, Lane: 2}},
	}}
	n := &fakeNotifier{}
	return NewController("u1", "ale", charts, n, clk), n
}

func startPayload(roundID string, startAt time.Time) *realtime.BandStartPayload {
	return &realtime.BandStartPayload{
		RoundID: roundID,
		Song:    "deepdown",
		StartAt: startAt,
		Assignments: []realtime.Assignment{
			{UserID: "u1", Nickname: "ale", Role: "guitar"},
			{UserID: "u2", Nickname: "bea", Role: "drums"},
		},
	}
}

func TestControllerSetupAssignsRole(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	c.ApplySetup(&realtime.BandSetupPayload{
		Song: "deepdown",
		Assignments: []realtime.Assignment{
			{UserID: "u1", Nickname: "ale", Role: "guitar"},
		},
	})

	if c.State() != ControllerAssigned || c.Role() != "guitar" {
		t.Errorf("state/role = %s/%s, want assigned/guitar", c.State(), c.Role())
	}
}

func TestControllerSetupSpectator(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	c.ApplySetup(&realtime.BandSetupPayload{
		Song: "deepdown",
		Assignments: []realtime.Assignment{
			{UserID: "u2", Nickname: "bea", Role: "drums"},
		},
	})

	if c.State() != ControllerSpectator {
		t.Errorf("unassigned participant state = %s, want spectator", c.State())
	}
}

func TestControllerNicknameFallbackMatch(t *testing.T) {
	clk := clockwork.NewFakeClock()
	charts := &fakeCharts{charts: map[string][]Note{"deepdown/guitar": {{Time: 1.0, Lane: 0}}}}
	c := NewController("", "ale", charts, &fakeNotifier{}, clk)

	err := c.ApplyStart(&realtime.BandStartPayload{
		RoundID: "r1",
		Song:    "deepdown",
		StartAt: clk.Now().Add(4 * time.Second),
		Assignments: []realtime.Assignment{
			{Nickname: "ale", Role: "guitar"},
		},
	})
	if err != nil {
		t.Fatalf("ApplyStart: %v", err)
	}
	if c.State() != ControllerPlaying || c.Role() != "guitar" {
		t.Errorf("state/role = %s/%s, want playing/guitar via nickname match", c.State(), c.Role())
	}
}

func TestControllerStartIdempotentPerRound(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	startAt := clk.Now().Add(4 * time.Second)
	c.ApplyStart(startPayload("r1", startAt))

	clk.Advance(4 * time.Second)
	c.Press(0) // consume the t=0 note

	// Duplicate start for the same round must not rebuild the engine.
	c.ApplyStart(startPayload("r1", startAt))
	if c.Score() == 0 {
		t.Errorf("duplicate start reset the engine")
	}
}

func TestControllerChartFetchFailure(t *testing.T) {
	clk := clockwork.NewFakeClock()
	charts := &fakeCharts{err: errors.New("storage unreachable")}
	c := NewController("u1", "ale", charts, &fakeNotifier{}, clk)

	err := c.ApplyStart(startPayload("r1", clk.Now().Add(4*time.Second)))
	if err == nil {
		t.Fatalf("chart failure should surface an error")
	}
	if c.State() != ControllerAssigned {
		t.Errorf("state after failed load = %s, want assigned", c.State())
	}
	if c.LoadErr() == nil {
		t.Errorf("load error not recorded")
	}
}

func TestControllerPressNotifies(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, n := newTestController(clk)

	c.ApplyStart(startPayload("r1", clk.Now().Add(4*time.Second)))
	clk.Advance(4 * time.Second)

	j, ok := c.Press(0)
	if !ok || !j.Hit || j.Tier != AccuracyPerfect {
		t.Fatalf("press at note time = %+v, %v", j, ok)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.hits) != 1 {
		t.Fatalf("hit notifications = %d, want 1", len(n.hits))
	}
	h := n.hits[0]
	if h.Nickname != "ale" || h.Role != "guitar" || h.Points != 100 || h.Lane != 0 {
		t.Errorf("hit payload = %+v", h)
	}
}

func TestControllerPressDuringCountdownIgnored(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, n := newTestController(clk)

	c.ApplyStart(startPayload("r1", clk.Now().Add(4*time.Second)))

	if _, ok := c.Press(0); ok {
		t.Errorf("countdown press should be ignored")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.hits)+len(n.misses) != 0 {
		t.Errorf("countdown press produced notifications")
	}
}

func TestControllerNotifierFailureDoesNotBlock(t *testing.T) {
	clk := clockwork.NewFakeClock()
	charts := &fakeCharts{charts: map[string][]Note{"deepdown/guitar": {{Time: 0.0, Lane: 0}}}}
	n := &fakeNotifier{err: errors.New("not connected")}
	c := NewController("u1", "ale", charts, n, clk)

	c.ApplyStart(startPayload("r1", clk.Now().Add(4*time.Second)))
	clk.Advance(4 * time.Second)

	j, ok := c.Press(0)
	if !ok || !j.Hit {
		t.Errorf("send failure must not suppress the local judgment: %+v, %v", j, ok)
	}
	if c.Score() != 100 {
		t.Errorf("score = %d, want 100", c.Score())
	}
}

func TestControllerSyncRecordLateJoin(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	// Round started 10s ago; this client only now polls the record.
	startAt := clk.Now().Add(-10 * time.Second)
	rec := &Round{
		ID:          uuid.New(),
		SessionCode: "ABC123",
		Song:        "deepdown",
		Status:      RoundActive,
		StartAt:     startAt,
		Assignments: []realtime.Assignment{{UserID: "u1", Nickname: "ale", Role: "guitar"}},
	}

	if err := c.SyncRecord(rec); err != nil {
		t.Fatalf("SyncRecord: %v", err)
	}
	if c.State() != ControllerPlaying {
		t.Fatalf("state = %s, want playing", c.State())
	}
	if e := c.Elapsed(); e < 9.99 || e > 10.01 {
		t.Errorf("late join elapsed = %v, want ~10", e)
	}
}

func TestControllerSyncRecordSameRoundNoRestart(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	rec := &Round{
		ID:          uuid.New(),
		Song:        "deepdown",
		Status:      RoundActive,
		StartAt:     clk.Now().Add(4 * time.Second),
		Assignments: []realtime.Assignment{{UserID: "u1", Nickname: "ale", Role: "guitar"}},
	}
	c.SyncRecord(rec)
	clk.Advance(4 * time.Second)
	c.Press(0)

	// Re-reading the unchanged record must not restart the round.
	c.SyncRecord(rec)
	if c.Score() != 100 {
		t.Errorf("unchanged record re-read reset the engine")
	}
}

func TestControllerSyncRecordNewStartAtIsNewRound(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	first := &Round{
		ID:          uuid.New(),
		Song:        "deepdown",
		Status:      RoundActive,
		StartAt:     clk.Now().Add(4 * time.Second),
		Assignments: []realtime.Assignment{{UserID: "u1", Nickname: "ale", Role: "guitar"}},
	}
	c.SyncRecord(first)
	clk.Advance(4 * time.Second)
	c.Press(0)

	second := &Round{
		ID:          uuid.New(),
		Song:        "deepdown",
		Status:      RoundActive,
		StartAt:     clk.Now().Add(4 * time.Second),
		Assignments: first.Assignments,
	}
	c.SyncRecord(second)

	if c.Score() != 0 {
		t.Errorf("new start instant should begin a fresh round, score = %d", c.Score())
	}
	if c.State() != ControllerPlaying {
		t.Errorf("state = %s, want playing", c.State())
	}
}

func TestControllerSyncRecordVanishedStops(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	c.ApplyStart(startPayload("r1", clk.Now().Add(4*time.Second)))
	if c.State() != ControllerPlaying {
		t.Fatalf("setup: state = %s", c.State())
	}

	c.SyncRecord(nil)
	if c.State() != ControllerWaiting {
		t.Errorf("state after vanished record = %s, want waiting", c.State())
	}
	if c.Elapsed() >= 0 {
		t.Errorf("elapsed should be idle sentinel after stop")
	}
}

func TestControllerCompensationShiftsTimeline(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)
	c.Compensation = 50 * time.Millisecond

	c.ApplyStart(startPayload("r1", clk.Now().Add(4*time.Second)))
	clk.Advance(4 * time.Second)

	if e := c.Elapsed(); e < 0.049 || e > 0.051 {
		t.Errorf("compensated elapsed at start instant = %v, want ~0.05", e)
	}
}

func TestControllerTickSweepsMisses(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestController(clk)

	c.ApplyStart(startPayload("r1", clk.Now().Add(4*time.Second)))

	// During the countdown Tick is a no-op.
	if n := c.Tick(); n != 0 {
		t.Errorf("countdown tick swept %d", n)
	}

	clk.Advance(4*time.Second + 2*time.Second)
	if n := c.Tick(); n != 2 {
		t.Errorf("sweep at 2s = %d notes, want 2", n)
	}
}
