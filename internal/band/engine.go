package band

import "math"

// Timing and scoring constants for the rhythm game.
const (
	// NumLanes is the fixed lane count of every chart.
	NumLanes = 3

	// HitWindow is the loosest acceptable |note time - input time| delta.
	HitWindow = 0.18
	// GoodWindow and PerfectWindow are the tighter accuracy tiers.
	GoodWindow    = 0.09
	PerfectWindow = 0.045

	// NoteLead is how many seconds before its scheduled time a note becomes
	// visible on the scroll.
	NoteLead = 3.0

	// judgingGrace: no miss sweep runs before elapsed reaches this, so the
	// countdown never produces spurious judgments.
	judgingGrace = -1.0
)

// Accuracy tiers, loosest to tightest.
type Accuracy string

const (
	AccuracyHit     Accuracy = "hit"
	AccuracyGood    Accuracy = "good"
	AccuracyPerfect Accuracy = "perfect"
)

// Points awarded per accuracy tier.
func (a Accuracy) Points() int {
	switch a {
	case AccuracyPerfect:
		return 100
	case AccuracyGood:
		return 60
	default:
		return 30
	}
}

func tierFor(delta float64) Accuracy {
	switch {
	case delta < PerfectWindow:
		return AccuracyPerfect
	case delta < GoodWindow:
		return AccuracyGood
	default:
		return AccuracyHit
	}
}

// noteState tracks one chart note through its single terminal transition:
// pending to hit, or pending to missed. Never resurrected.
type noteState struct {
	Note
	hit    bool
	missed bool
}

func (n *noteState) resolved() bool { return n.hit || n.missed }

// Judgment is the outcome of one player input.
type Judgment struct {
	Hit    bool
	Lane   int
	Tier   Accuracy
	Delta  float64
	Points int
	Combo  int
}

// NotePosition is a renderable note: its lane and scroll progress, where 0
// is the spawn edge and 1 is the hit line.
type NotePosition struct {
	Lane     int
	Progress float64
}

// Engine judges player input against a chart and tracks score and combo for
// one client. State is local; the authoritative aggregate is rebuilt by the
// display from the hit/miss broadcast stream.
type Engine struct {
	notes []noteState
	score int
	combo int
}

// NewEngine loads a chart into a fresh engine.
func NewEngine(chart []Note) *Engine {
	notes := make([]noteState, len(chart))
	for i, n := range chart {
		notes[i] = noteState{Note: n}
	}
	return &Engine{notes: notes}
}

// Judge processes an input on lane at the given elapsed time. Input during
// the countdown is rejected (accepted == false) and has no effect.
//
// The closest unresolved note on the lane within HitWindow wins; when none
// qualifies the input is a miss and the combo resets.
func (e *Engine) Judge(lane int, elapsed float64) (j Judgment, accepted bool) {
	if elapsed < 0 {
		return Judgment{}, false
	}

	var best *noteState
	bestDelta := math.Inf(1)
	for i := range e.notes {
		n := &e.notes[i]
		if n.resolved() || n.Lane != lane {
			continue
		}
		d := math.Abs(n.Time - elapsed)
		if d < HitWindow && d < bestDelta {
			best = n
			bestDelta = d
		}
	}

	if best == nil {
		e.combo = 0
		return Judgment{Hit: false, Lane: lane}, true
	}

	best.hit = true
	tier := tierFor(bestDelta)
	points := tier.Points()
	e.score += points
	e.combo++

	return Judgment{
		Hit:    true,
		Lane:   lane,
		Tier:   tier,
		Delta:  bestDelta,
		Points: points,
		Combo:  e.combo,
	}, true
}

// Sweep marks every note whose hit window has passed as missed and returns
// how many were newly missed. Any newly missed note resets the combo.
// Nothing is swept before the judging grace point.
func (e *Engine) Sweep(elapsed float64) int {
	if elapsed < judgingGrace {
		return 0
	}
	missed := 0
	for i := range e.notes {
		n := &e.notes[i]
		if n.resolved() {
			continue
		}
		if elapsed-n.Time > HitWindow {
			n.missed = true
			missed++
		}
	}
	if missed > 0 {
		e.combo = 0
	}
	return missed
}

// Visible returns scroll positions for unresolved notes within the lead
// window, for the renderer.
func (e *Engine) Visible(elapsed float64) []NotePosition {
	var out []NotePosition
	for i := range e.notes {
		n := &e.notes[i]
		if n.resolved() {
			continue
		}
		timeToHit := n.Time - elapsed
		if timeToHit > NoteLead {
			continue
		}
		out = append(out, NotePosition{
			Lane:     n.Lane,
			Progress: 1 - timeToHit/NoteLead,
		})
	}
	return out
}

// Score returns the accumulated local score.
func (e *Engine) Score() int { return e.score }

// Combo returns the current streak.
func (e *Engine) Combo() int { return e.combo }

// Remaining returns how many notes are still unresolved.
func (e *Engine) Remaining() int {
	n := 0
	for i := range e.notes {
		if !e.notes[i].resolved() {
			n++
		}
	}
	return n
}

// Finished reports whether every note has been resolved.
func (e *Engine) Finished() bool { return e.Remaining() == 0 }
