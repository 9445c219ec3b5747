package band

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/encorelive/encore/internal/realtime"
)

// ControllerState is the phone-side state machine:
// waiting|spectator ⇄ assigned → loading → playing, back to waiting when
// the round record disappears or changes identity.
type ControllerState string

const (
	ControllerWaiting   ControllerState = "waiting"
	ControllerSpectator ControllerState = "spectator"
	ControllerAssigned  ControllerState = "assigned"
	ControllerLoading   ControllerState = "loading"
	ControllerPlaying   ControllerState = "playing"
)

// ChartSource fetches the per-role chart once the role is known.
type ChartSource interface {
	Chart(song, role string) ([]Note, error)
}

// Notifier carries outward hit/miss feedback. Best effort; a failed send is
// logged and the round continues.
type Notifier interface {
	NotifyHit(p realtime.BandHitPayload) error
	NotifyMiss(p realtime.BandMissPayload) error
}

// Controller drives one participant's phone for the band game. All state
// that callbacks touch lives on the struct.
type Controller struct {
	UserID   string
	Nickname string

	clock    clockwork.Clock
	charts   ChartSource
	notifier Notifier

	// Fixed latency compensation applied to the shared anchor. Zero by
	// default; operators can trim it per venue.
	Compensation time.Duration

	state   ControllerState
	role    string
	song    string
	roundID string
	startAt time.Time
	loadErr error

	anchor *Anchor
	engine *Engine
}

// NewController creates an idle controller. A nil clock means wall clock.
func NewController(userID, nickname string, charts ChartSource, notifier Notifier, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		UserID:   userID,
		Nickname: nickname,
		clock:    clock,
		charts:   charts,
		notifier: notifier,
		state:    ControllerWaiting,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() ControllerState { return c.state }

// Role returns the assigned role, if any.
func (c *Controller) Role() string { return c.role }

// LoadErr returns the last chart-fetch failure, surfaced to this client
// only. Other clients' rounds are unaffected.
func (c *Controller) LoadErr() error { return c.loadErr }

// Score and Combo expose the local engine counters.
func (c *Controller) Score() int {
	if c.engine == nil {
		return 0
	}
	return c.engine.Score()
}

func (c *Controller) Combo() int {
	if c.engine == nil {
		return 0
	}
	return c.engine.Combo()
}

// ApplySetup resolves this participant's assignment: by user id first,
// nickname as the fallback matching key. Unassigned participants become
// spectators for the round.
func (c *Controller) ApplySetup(p *realtime.BandSetupPayload) {
	c.song = p.Song
	a := c.findAssignment(p.Assignments)
	if a == nil {
		c.role = ""
		c.state = ControllerSpectator
		log.Info().Str("nickname", c.Nickname).Msg("no role assigned, spectating")
		return
	}
	c.role = a.Role
	c.state = ControllerAssigned
	log.Info().
		Str("nickname", c.Nickname).
		Str("role", a.Role).
		Msg("role assigned")
}

func (c *Controller) findAssignment(assignments []realtime.Assignment) *realtime.Assignment {
	if c.UserID != "" {
		for i := range assignments {
			if assignments[i].UserID == c.UserID {
				return &assignments[i]
			}
		}
	}
	for i := range assignments {
		if assignments[i].Nickname == c.Nickname {
			return &assignments[i]
		}
	}
	return nil
}

// ApplyStart enters a round announced by broadcast. The same round id is
// idempotent. The chart is fetched by role; a fetch failure leaves this
// client in a visible error state without blocking anyone else.
func (c *Controller) ApplyStart(p *realtime.BandStartPayload) error {
	return c.enterRound(p.RoundID, p.Song, p.StartAt, p.Assignments)
}

// ApplyStop resets to waiting and discards all round state.
func (c *Controller) ApplyStop() {
	c.resetRound()
	c.state = ControllerWaiting
	log.Info().Str("nickname", c.Nickname).Msg("round stopped")
}

// SyncRecord reconciles against the polled durable round record, the source
// of truth for round transitions. A nil or ended record resets to waiting.
// A changed start instant means a NEW round, not a re-read: the controller
// joins it mid-round with the correct elapsed time rather than restarting
// from zero.
func (c *Controller) SyncRecord(rec *Round) error {
	if rec == nil || rec.Status != RoundActive {
		if c.state != ControllerWaiting {
			c.ApplyStop()
		}
		return nil
	}
	if c.state == ControllerPlaying && rec.StartAt.Equal(c.startAt) {
		return nil
	}
	return c.enterRound(rec.ID.String(), rec.Song, rec.StartAt, rec.Assignments)
}

func (c *Controller) enterRound(roundID, song string, startAt time.Time, assignments []realtime.Assignment) error {
	if c.state == ControllerPlaying && roundID == c.roundID {
		return nil
	}

	c.resetRound()
	c.song = song
	a := c.findAssignment(assignments)
	if a == nil {
		c.role = ""
		c.state = ControllerSpectator
		return nil
	}
	c.role = a.Role

	c.state = ControllerLoading
	chart, err := c.charts.Chart(song, c.role)
	if err != nil {
		c.loadErr = err
		c.state = ControllerAssigned
		log.Error().
			Err(err).
			Str("song", song).
			Str("role", c.role).
			Msg("chart fetch failed")
		return err
	}

	c.roundID = roundID
	c.startAt = startAt
	c.anchor = NewAnchor(startAt, c.Compensation, c.clock)
	c.engine = NewEngine(chart)
	c.state = ControllerPlaying

	log.Info().
		Str("round_id", roundID).
		Str("song", song).
		Str("role", c.role).
		Time("start_at", startAt).
		Msg("joined round")
	return nil
}

func (c *Controller) resetRound() {
	c.roundID = ""
	c.startAt = time.Time{}
	c.anchor = nil
	c.engine = nil
	c.loadErr = nil
}

// Elapsed returns the shared timeline position, or a large negative value
// when no round is active.
func (c *Controller) Elapsed() float64 {
	if c.anchor == nil {
		return -999
	}
	return c.anchor.Elapsed()
}

// Press judges an input on the lane and notifies the display. Input during
// the countdown is ignored.
func (c *Controller) Press(lane int) (Judgment, bool) {
	if c.state != ControllerPlaying || c.engine == nil {
		return Judgment{}, false
	}
	j, accepted := c.engine.Judge(lane, c.anchor.Elapsed())
	if !accepted {
		return Judgment{}, false
	}

	if j.Hit {
		err := c.notifier.NotifyHit(realtime.BandHitPayload{
			UserID:   c.UserID,
			Nickname: c.Nickname,
			Role:     c.role,
			Lane:     lane,
			Accuracy: j.Delta,
			Points:   j.Points,
		})
		if err != nil {
			log.Debug().Err(err).Msg("hit notification dropped")
		}
	} else {
		err := c.notifier.NotifyMiss(realtime.BandMissPayload{
			UserID:   c.UserID,
			Nickname: c.Nickname,
			Role:     c.role,
			Lane:     lane,
		})
		if err != nil {
			log.Debug().Err(err).Msg("miss notification dropped")
		}
	}
	return j, true
}

// Tick runs the periodic miss sweep; timed-out notes reset the combo
// locally without broadcasting.
func (c *Controller) Tick() int {
	if c.state != ControllerPlaying || c.engine == nil {
		return 0
	}
	return c.engine.Sweep(c.anchor.Elapsed())
}
