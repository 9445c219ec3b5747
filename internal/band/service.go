package band

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/encorelive/encore/internal/realtime"
)

// StartDelay is the fixed lead between the operator pressing start and the
// shared timeline's zero point, long enough for every client to receive the
// start, fetch its chart and show a countdown.
const StartDelay = 4 * time.Second

// EventPublisher publishes control events. Broadcasts are low-latency
// hints; the durable record written first is what clients trust.
type EventPublisher interface {
	Publish(ctx context.Context, ev *realtime.Event) error
}

// RoundStore is the durable round record storage the service needs.
type RoundStore interface {
	CreateRound(ctx context.Context, round *Round) error
	GetActiveRound(ctx context.Context, sessionCode string) (*Round, error)
	EndRound(ctx context.Context, sessionCode string) error
}

// Service drives the operator-side round lifecycle: setup, start, stop.
type Service struct {
	store RoundStore
	pub   EventPublisher
	clock clockwork.Clock
}

// NewService wires the round lifecycle service. A nil clock means wall
// clock.
func NewService(store RoundStore, pub EventPublisher, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, pub: pub, clock: clock}
}

// SendSetup broadcasts the assignment board: assignments only, no
// countdown. Fails back to the operator when nothing is assigned or no song
// is selected.
func (s *Service) SendSetup(ctx context.Context, sessionCode string, setup *Setup) error {
	if err := setup.validateForSetup(); err != nil {
		return err
	}

	ev, err := realtime.NewEvent(sessionCode, realtime.EventTypeBandSetup, realtime.BandSetupPayload{
		Song:        setup.Song(),
		Assignments: setup.Assignments(),
	})
	if err != nil {
		return fmt.Errorf("build setup event: %w", err)
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish setup: %w", err)
	}
	setup.markSetupSent()

	log.Info().
		Str("session_code", sessionCode).
		Str("song", setup.Song()).
		Int("assignments", len(setup.Assignments())).
		Msg("band setup sent")
	return nil
}

// SendStart schedules the round. The durable record is persisted before the
// broadcast so late-joining or reconnecting clients recover the round by
// polling even if the broadcast never reaches them.
func (s *Service) SendStart(ctx context.Context, sessionCode string, setup *Setup) (*Round, error) {
	if err := setup.validateForSetup(); err != nil {
		return nil, err
	}
	if !setup.SetupSent() {
		return nil, ErrSetupNotSent
	}

	round := &Round{
		ID:          uuid.New(),
		SessionCode: sessionCode,
		Song:        setup.Song(),
		Status:      RoundActive,
		StartAt:     s.clock.Now().Add(StartDelay).UTC(),
		Assignments: setup.Assignments(),
	}
	if err := s.store.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("persist round: %w", err)
	}

	ev, err := realtime.NewEvent(sessionCode, realtime.EventTypeBandStart, realtime.BandStartPayload{
		RoundID:     round.ID.String(),
		Song:        round.Song,
		StartAt:     round.StartAt,
		Assignments: round.Assignments,
	})
	if err != nil {
		return nil, fmt.Errorf("build start event: %w", err)
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		// The record is already durable; pollers will still pick the round
		// up, just without the low-latency hint.
		log.Warn().Err(err).Str("session_code", sessionCode).Msg("start broadcast failed")
	}

	log.Info().
		Str("session_code", sessionCode).
		Str("round_id", round.ID.String()).
		Time("start_at", round.StartAt).
		Msg("band round started")
	return round, nil
}

// Stop ends the active round: durable record first, then the stop
// broadcast, then the local board reset.
func (s *Service) Stop(ctx context.Context, sessionCode string, setup *Setup) error {
	if err := s.store.EndRound(ctx, sessionCode); err != nil {
		return fmt.Errorf("end round: %w", err)
	}

	ev, err := realtime.NewEvent(sessionCode, realtime.EventTypeBandStop, struct{}{})
	if err != nil {
		return fmt.Errorf("build stop event: %w", err)
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("session_code", sessionCode).Msg("stop broadcast failed")
	}

	if setup != nil {
		setup.Reset()
	}

	log.Info().Str("session_code", sessionCode).Msg("band round stopped")
	return nil
}

// ActiveRound exposes the durable record for polling clients.
func (s *Service) ActiveRound(ctx context.Context, sessionCode string) (*Round, error) {
	return s.store.GetActiveRound(ctx, sessionCode)
}
