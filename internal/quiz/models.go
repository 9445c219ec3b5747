package quiz

import (
	"time"

	"github.com/google/uuid"
)

// Status is the quiz round lifecycle.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Quiz is one trivia round, durable so late joiners and reconnecting
// clients recover it by polling.
type Quiz struct {
	ID           uuid.UUID
	SessionCode  string
	Question     string
	Options      []string
	CorrectIndex int
	Status       Status
	StartedAt    time.Time
	EndsAt       time.Time
}

// Answer is one participant's submission.
type Answer struct {
	QuizID      uuid.UUID
	Nickname    string
	OptionIndex int
	AnsweredAt  time.Time
}
