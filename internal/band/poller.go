package band

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// PollInterval is the fixed cadence for watching the durable round record.
const PollInterval = 500 * time.Millisecond

// RoundSource reads the durable round record.
type RoundSource interface {
	GetActiveRound(ctx context.Context, sessionCode string) (*Round, error)
}

// Poller watches the durable round record for one session and reports
// changes. It is the correctness-critical path for round transitions;
// broadcast messages only trigger an early poll via Kick, never a
// transition on their own.
type Poller struct {
	source      RoundSource
	clock       clockwork.Clock
	sessionCode string
	onChange    func(*Round)

	kick chan struct{}

	hadRound    bool
	lastStartAt time.Time
}

// NewPoller creates a poller for one session. onChange receives the new
// record on every detected transition, nil when the record vanished. A nil
// clock means wall clock.
func NewPoller(source RoundSource, sessionCode string, onChange func(*Round), clock clockwork.Clock) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		source:      source,
		clock:       clock,
		sessionCode: sessionCode,
		onChange:    onChange,
		kick:        make(chan struct{}, 1),
	}
}

// Kick requests an early poll, typically because a broadcast hinted at a
// transition. Coalesces when a kick is already pending.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	log.Info().
		Str("session_code", p.sessionCode).
		Dur("interval", PollInterval).
		Msg("round poller started")

	ticker := p.clock.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("session_code", p.sessionCode).Msg("round poller stopped")
			return
		case <-ticker.Chan():
			p.poll(ctx)
		case <-p.kick:
			p.poll(ctx)
		}
	}
}

// poll reads the record and fires onChange when the round appeared,
// vanished, or changed identity. A changed start instant is the signal for
// a new round, not merely a re-read of the same record.
func (p *Poller) poll(ctx context.Context) {
	round, err := p.source.GetActiveRound(ctx, p.sessionCode)
	if err != nil {
		// Transient storage errors are absorbed; the next tick retries.
		log.Warn().Err(err).Str("session_code", p.sessionCode).Msg("round poll failed")
		return
	}

	if round == nil {
		if p.hadRound {
			p.hadRound = false
			p.lastStartAt = time.Time{}
			p.onChange(nil)
		}
		return
	}

	if !p.hadRound || !round.StartAt.Equal(p.lastStartAt) {
		p.hadRound = true
		p.lastStartAt = round.StartAt
		p.onChange(round)
	}
}
