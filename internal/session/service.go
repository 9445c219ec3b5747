package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrSessionNotFound is returned for unknown join codes.
var ErrSessionNotFound = errors.New("session: not found")

// Store is the persistence surface the service needs.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetByCode(ctx context.Context, code string) (*Session, error)
	SetActiveModule(ctx context.Context, id uuid.UUID, m Module) error
	AddParticipant(ctx context.Context, p *Participant) error
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]Participant, error)
}

// Service manages session lifecycle and joining.
type Service struct {
	store Store
}

// NewService wires the session service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create opens a new session with a fresh join code, retrying on the
// unlikely code collision.
func (s *Service) Create(ctx context.Context, name string) (*Session, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := NewJoinCode()
		if err != nil {
			return nil, err
		}
		existing, err := s.store.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}

		sess := &Session{
			ID:   uuid.New(),
			Code: code,
			Name: name,
		}
		if err := s.store.CreateSession(ctx, sess); err != nil {
			return nil, err
		}
		log.Info().Str("code", code).Str("name", name).Msg("session created")
		return sess, nil
	}
	return nil, fmt.Errorf("session: could not allocate a unique join code")
}

// Lookup resolves a join code.
func (s *Service) Lookup(ctx context.Context, code string) (*Session, error) {
	sess, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Join registers a participant by nickname. Re-joining with the same
// nickname resumes the existing identity.
func (s *Service) Join(ctx context.Context, code, nickname string) (*Participant, error) {
	sess, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	p := &Participant{
		ID:        uuid.New(),
		SessionID: sess.ID,
		Nickname:  nickname,
	}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Str("code", code).Str("nickname", nickname).Msg("participant joined")
	return p, nil
}

// SetActiveModule flips the session's live mini-game indicator.
func (s *Service) SetActiveModule(ctx context.Context, code string, m Module) error {
	sess, err := s.Lookup(ctx, code)
	if err != nil {
		return err
	}
	return s.store.SetActiveModule(ctx, sess.ID, m)
}

// Participants returns the roster for a session code.
func (s *Service) Participants(ctx context.Context, code string) ([]Participant, error) {
	sess, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, sess.ID)
}
