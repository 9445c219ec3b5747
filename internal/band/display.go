package band

import (
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DisplayState is the shared-screen state machine: waiting → countdown →
// playing, with stop returning to waiting from any state.
type DisplayState string

const (
	DisplayWaiting   DisplayState = "waiting"
	DisplayCountdown DisplayState = "countdown"
	DisplayPlaying   DisplayState = "playing"
)

// Energy visualization constants: each hit bumps the level, which then
// decays exponentially to about 1% of full scale over 2.5 seconds.
const (
	energyBump      = 0.35
	energyFloor     = 0.01
	energyDecayOver = 2.5
)

var energyDecayRate = math.Log(1/energyFloor) / energyDecayOver

// PlayerState is one participant's aggregate for the current round,
// reconstructed purely from the hit/miss broadcast stream. A display that
// misses broadcasts under-counts; that is accepted for this low-stakes path.
type PlayerState struct {
	Nickname string
	Score    int
	Combo    int
}

// FrameSnapshot is what one render frame needs.
type FrameSnapshot struct {
	State     DisplayState
	Countdown int
	Elapsed   float64
	Notes     []NotePosition
	Score     int
	Combo     int
	Energy    float64
	Players   []PlayerState
}

// Display aggregates a round for the shared screen. All mutable round state
// lives on this struct so every callback reads current values.
type Display struct {
	clock clockwork.Clock

	roundID string
	anchor  *Anchor
	chart   []Note
	engine  *Engine

	players map[string]*PlayerState
	score   int
	combo   int

	energy   float64
	energyAt time.Time
}

// NewDisplay creates an idle display. A nil clock means wall clock.
func NewDisplay(clock clockwork.Clock) *Display {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Display{
		clock:   clock,
		players: make(map[string]*PlayerState),
	}
}

// State derives the current display state from the anchor.
func (d *Display) State() DisplayState {
	if d.anchor == nil {
		return DisplayWaiting
	}
	if d.anchor.Elapsed() < 0 {
		return DisplayCountdown
	}
	return DisplayPlaying
}

// StartRound anchors a new round. A repeated start for the same round id is
// ignored; a different id replaces any round in progress.
func (d *Display) StartRound(roundID, song string, startAt time.Time, chart []Note) {
	if roundID != "" && roundID == d.roundID && d.anchor != nil {
		log.Debug().Str("round_id", roundID).Msg("ignoring repeated round start")
		return
	}
	d.resetRound()
	d.roundID = roundID
	d.anchor = NewAnchor(startAt, 0, d.clock)
	d.chart = chart
	if chart != nil {
		d.engine = NewEngine(chart)
	}
	log.Info().
		Str("round_id", roundID).
		Str("song", song).
		Time("start_at", startAt).
		Msg("display round started")
}

// Stop returns to waiting from any state and clears all per-round state.
// Leaving anything behind causes stale visuals or phantom scoring on the
// next round.
func (d *Display) Stop() {
	d.resetRound()
	d.roundID = ""
	log.Info().Msg("display round stopped")
}

func (d *Display) resetRound() {
	d.anchor = nil
	d.chart = nil
	d.engine = nil
	d.players = make(map[string]*PlayerState)
	d.score = 0
	d.combo = 0
	d.energy = 0
	d.energyAt = time.Time{}
}

// ApplyHit folds one inbound hit broadcast into the aggregate.
func (d *Display) ApplyHit(nickname string, points int) {
	p := d.player(nickname)
	p.Score += points
	p.Combo++
	d.score += points
	d.combo++

	d.energy = math.Min(1, d.Energy()+energyBump)
	d.energyAt = d.clock.Now()
}

// ApplyMiss folds one inbound miss broadcast into the aggregate.
func (d *Display) ApplyMiss(nickname string) {
	d.player(nickname).Combo = 0
	d.combo = 0
}

func (d *Display) player(nickname string) *PlayerState {
	p, ok := d.players[nickname]
	if !ok {
		p = &PlayerState{Nickname: nickname}
		d.players[nickname] = p
	}
	return p
}

// Energy returns the current decayed energy level.
func (d *Display) Energy() float64 {
	if d.energy == 0 {
		return 0
	}
	dt := d.clock.Since(d.energyAt).Seconds()
	if dt < 0 {
		dt = 0
	}
	level := d.energy * math.Exp(-energyDecayRate*dt)
	if level < energyFloor {
		return 0
	}
	return level
}

// Leaderboard returns players sorted by score, best first.
func (d *Display) Leaderboard() []PlayerState {
	out := make([]PlayerState, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Frame produces one render snapshot. The drawable surface is re-measured
// by the caller every frame; a zero-size surface yields (nil, false) and
// the frame is skipped without erroring, so the display resumes
// automatically once the surface reports a real size again.
func (d *Display) Frame(width, height int) (*FrameSnapshot, bool) {
	if width <= 0 || height <= 0 {
		return nil, false
	}

	snap := &FrameSnapshot{
		State:   d.State(),
		Score:   d.score,
		Combo:   d.combo,
		Energy:  d.Energy(),
		Players: d.Leaderboard(),
	}
	if d.anchor == nil {
		return snap, true
	}

	elapsed := d.anchor.Elapsed()
	snap.Elapsed = elapsed
	if elapsed < 0 {
		snap.Countdown = int(math.Ceil(-elapsed))
	}
	if d.engine != nil {
		d.engine.Sweep(elapsed)
		snap.Notes = d.engine.Visible(elapsed)
	}
	return snap, true
}

// RoundID returns the identifier of the round in progress, if any.
func (d *Display) RoundID() string { return d.roundID }
