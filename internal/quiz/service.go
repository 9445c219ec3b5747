package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/encorelive/encore/internal/realtime"
)

// DefaultDuration is how long a quiz round accepts answers.
const DefaultDuration = 30 * time.Second

// CorrectAnswerPoints is awarded per correct answer on the leaderboard.
const CorrectAnswerPoints = 50

// ErrNoActiveQuiz is returned when answering with no quiz in flight.
var ErrNoActiveQuiz = errors.New("quiz: no active quiz")

// EventPublisher publishes quiz lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev *realtime.Event) error
}

// Store is the persistence surface the service needs.
type Store interface {
	CreateQuiz(ctx context.Context, q *Quiz) error
	GetActiveQuiz(ctx context.Context, sessionCode string) (*Quiz, error)
	EndQuiz(ctx context.Context, id uuid.UUID) (*Quiz, error)
	InsertAnswer(ctx context.Context, a *Answer) (inserted bool, err error)
}

// ScoreSink accumulates points for a participant, typically the session
// leaderboard.
type ScoreSink interface {
	AddScore(ctx context.Context, sessionCode, nickname string, points int) error
}

// Service drives quiz rounds. The durable quiz record is written before the
// start broadcast, and quiz_started events carry the quiz id so receivers
// can drop repeated starts.
type Service struct {
	store  Store
	pub    EventPublisher
	scores ScoreSink
	clock  clockwork.Clock
}

// NewService wires the quiz service. A nil clock means wall clock.
func NewService(store Store, pub EventPublisher, scores ScoreSink, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, pub: pub, scores: scores, clock: clock}
}

// Start opens a quiz round.
func (s *Service) Start(ctx context.Context, sessionCode, question string, options []string, correctIndex int) (*Quiz, error) {
	if question == "" || len(options) < 2 {
		return nil, fmt.Errorf("quiz: need a question and at least two options")
	}
	if correctIndex < 0 || correctIndex >= len(options) {
		return nil, fmt.Errorf("quiz: correct index %d out of range", correctIndex)
	}

	q := &Quiz{
		ID:           uuid.New(),
		SessionCode:  sessionCode,
		Question:     question,
		Options:      options,
		CorrectIndex: correctIndex,
		Status:       StatusActive,
		StartedAt:    s.clock.Now().UTC(),
		EndsAt:       s.clock.Now().Add(DefaultDuration).UTC(),
	}
	if err := s.store.CreateQuiz(ctx, q); err != nil {
		return nil, fmt.Errorf("persist quiz: %w", err)
	}

	ev, err := realtime.NewEvent(sessionCode, realtime.EventTypeQuizStarted, realtime.QuizStartedPayload{
		QuizID:   q.ID.String(),
		Question: q.Question,
		Options:  q.Options,
		EndsAt:   q.EndsAt,
	})
	if err != nil {
		return nil, fmt.Errorf("build quiz event: %w", err)
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("session_code", sessionCode).Msg("quiz start broadcast failed")
	}

	log.Info().
		Str("session_code", sessionCode).
		Str("quiz_id", q.ID.String()).
		Msg("quiz started")
	return q, nil
}

// End closes the active quiz and reveals the answer.
func (s *Service) End(ctx context.Context, sessionCode string) error {
	active, err := s.store.GetActiveQuiz(ctx, sessionCode)
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveQuiz
	}
	q, err := s.store.EndQuiz(ctx, active.ID)
	if err != nil {
		return err
	}
	if q == nil {
		return ErrNoActiveQuiz
	}

	ev, err := realtime.NewEvent(sessionCode, realtime.EventTypeQuizEnded, realtime.QuizEndedPayload{
		QuizID:       q.ID.String(),
		CorrectIndex: q.CorrectIndex,
	})
	if err != nil {
		return fmt.Errorf("build quiz event: %w", err)
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("session_code", sessionCode).Msg("quiz end broadcast failed")
	}

	log.Info().Str("session_code", sessionCode).Str("quiz_id", q.ID.String()).Msg("quiz ended")
	return nil
}

// Answer records a submission and awards leaderboard points for a correct
// one. Late answers are rejected, and only the first submission per
// participant scores; repeats report correctness but never add points.
func (s *Service) Answer(ctx context.Context, sessionCode, nickname string, optionIndex int) (correct bool, err error) {
	q, err := s.store.GetActiveQuiz(ctx, sessionCode)
	if err != nil {
		return false, err
	}
	if q == nil {
		return false, ErrNoActiveQuiz
	}
	if s.clock.Now().After(q.EndsAt) {
		return false, ErrNoActiveQuiz
	}

	inserted, err := s.store.InsertAnswer(ctx, &Answer{
		QuizID:      q.ID,
		Nickname:    nickname,
		OptionIndex: optionIndex,
	})
	if err != nil {
		return false, err
	}

	correct = optionIndex == q.CorrectIndex
	if correct && inserted && s.scores != nil {
		if err := s.scores.AddScore(ctx, sessionCode, nickname, CorrectAnswerPoints); err != nil {
			log.Warn().Err(err).Str("nickname", nickname).Msg("leaderboard update failed")
		}
	}
	return correct, nil
}

// Active exposes the durable quiz record for polling clients.
func (s *Service) Active(ctx context.Context, sessionCode string) (*Quiz, error) {
	return s.store.GetActiveQuiz(ctx, sessionCode)
}
