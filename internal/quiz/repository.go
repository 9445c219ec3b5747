package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores quiz rounds and answers in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateQuiz persists a new active quiz, ending any quiz still active for
// the session.
func (r *Repository) CreateQuiz(ctx context.Context, q *Quiz) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE quizzes SET status = $1 WHERE session_code = $2 AND status = $3`,
		StatusEnded, q.SessionCode, StatusActive,
	)
	if err != nil {
		return fmt.Errorf("end previous quiz: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO quizzes (id, session_code, question, options, correct_index, status, started_at, ends_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		q.ID, q.SessionCode, q.Question, options, q.CorrectIndex, q.Status, q.EndsAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	return tx.Commit(ctx)
}

// GetActiveQuiz returns the active quiz for the session, or nil when none.
func (r *Repository) GetActiveQuiz(ctx context.Context, sessionCode string) (*Quiz, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, session_code, question, options, correct_index, status, started_at, ends_at
		 FROM quizzes WHERE session_code = $1 AND status = $2
		 ORDER BY started_at DESC LIMIT 1`,
		sessionCode, StatusActive,
	)

	var q Quiz
	var options []byte
	err := row.Scan(&q.ID, &q.SessionCode, &q.Question, &options, &q.CorrectIndex,
		&q.Status, &q.StartedAt, &q.EndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active quiz: %w", err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return &q, nil
}

// EndQuiz marks a quiz ended and returns it.
func (r *Repository) EndQuiz(ctx context.Context, id uuid.UUID) (*Quiz, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE quizzes SET status = $1 WHERE id = $2
		 RETURNING id, session_code, question, options, correct_index, status, started_at, ends_at`,
		StatusEnded, id,
	)
	var q Quiz
	var options []byte
	err := row.Scan(&q.ID, &q.SessionCode, &q.Question, &options, &q.CorrectIndex,
		&q.Status, &q.StartedAt, &q.EndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("end quiz: %w", err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return &q, nil
}

// InsertAnswer records one submission and reports whether it was the
// participant's first for this quiz. A repeat submission leaves the stored
// answer untouched and returns false.
func (r *Repository) InsertAnswer(ctx context.Context, a *Answer) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_answers (quiz_id, nickname, option_index, answered_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (quiz_id, nickname) DO NOTHING`,
		a.QuizID, a.Nickname, a.OptionIndex,
	)
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
