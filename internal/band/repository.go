package band

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/encorelive/encore/internal/realtime"
)

// RoundStatus is the lifecycle of the durable round record.
type RoundStatus string

const (
	RoundInactive RoundStatus = "inactive"
	RoundActive   RoundStatus = "active"
	RoundEnded    RoundStatus = "ended"
)

// Round is the durable round record, the source of truth for round
// transitions. Clients poll it; a changed start instant signals a new
// round, not merely a re-read.
type Round struct {
	ID          uuid.UUID
	SessionCode string
	Song        string
	Status      RoundStatus
	StartAt     time.Time
	Assignments []realtime.Assignment
	CreatedAt   time.Time
}

// Repository stores band rounds in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRound persists a new active round, ending any round still active
// for the session.
func (r *Repository) CreateRound(ctx context.Context, round *Round) error {
	assignments, err := json.Marshal(round.Assignments)
	if err != nil {
		return fmt.Errorf("marshal assignments: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE band_rounds SET status = $1 WHERE session_code = $2 AND status = $3`,
		RoundEnded, round.SessionCode, RoundActive,
	)
	if err != nil {
		return fmt.Errorf("end previous round: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO band_rounds (id, session_code, song, status, start_at, assignments, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		round.ID, round.SessionCode, round.Song, round.Status, round.StartAt, assignments,
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	return tx.Commit(ctx)
}

// GetActiveRound returns the active round for the session, or nil when
// none exists.
func (r *Repository) GetActiveRound(ctx context.Context, sessionCode string) (*Round, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, session_code, song, status, start_at, assignments, created_at
		 FROM band_rounds
		 WHERE session_code = $1 AND status = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		sessionCode, RoundActive,
	)

	var round Round
	var assignments []byte
	err := row.Scan(&round.ID, &round.SessionCode, &round.Song, &round.Status,
		&round.StartAt, &assignments, &round.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active round: %w", err)
	}
	if err := json.Unmarshal(assignments, &round.Assignments); err != nil {
		return nil, fmt.Errorf("unmarshal assignments: %w", err)
	}
	return &round, nil
}

// EndRound marks the session's active round as ended. Ending when no round
// is active is a no-op.
func (r *Repository) EndRound(ctx context.Context, sessionCode string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE band_rounds SET status = $1 WHERE session_code = $2 AND status = $3`,
		RoundEnded, sessionCode, RoundActive,
	)
	if err != nil {
		return fmt.Errorf("end round: %w", err)
	}
	return nil
}
