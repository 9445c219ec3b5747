package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores sessions and participants in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSession persists a new session.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, code, name, active_module, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		s.ID, s.Code, s.Name, s.ActiveModule,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByCode returns the session for a join code, or nil when unknown.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, code, name, active_module, created_at FROM sessions WHERE code = $1`,
		code,
	)
	var s Session
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.ActiveModule, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by code: %w", err)
	}
	return &s, nil
}

// SetActiveModule flips the active-module indicator.
func (r *Repository) SetActiveModule(ctx context.Context, id uuid.UUID, m Module) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET active_module = $1 WHERE id = $2`, m, id,
	)
	if err != nil {
		return fmt.Errorf("set active module: %w", err)
	}
	return nil
}

// AddParticipant registers an attendee. Joining again with the same
// nickname returns the existing participant.
func (r *Repository) AddParticipant(ctx context.Context, p *Participant) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO participants (id, session_id, nickname, joined_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (session_id, nickname)
		 DO UPDATE SET nickname = EXCLUDED.nickname
		 RETURNING id, joined_at`,
		p.ID, p.SessionID, p.Nickname,
	)
	if err := row.Scan(&p.ID, &p.JoinedAt); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// ListParticipants returns the session roster in join order.
func (r *Repository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, nickname, joined_at
		 FROM participants WHERE session_id = $1 ORDER BY joined_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Nickname, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
