package session

import (
	"time"

	"github.com/google/uuid"
)

// Module identifies which mini-game, if any, is live for a session.
type Module string

const (
	ModuleNone    Module = ""
	ModuleBand    Module = "band"
	ModuleQuiz    Module = "quiz"
	ModuleKaraoke Module = "karaoke"
)

// Session is one live party instance, looked up by every client via its
// short code.
type Session struct {
	ID           uuid.UUID
	Code         string
	Name         string
	ActiveModule Module
	CreatedAt    time.Time
}

// Participant is one attendee of a session. Nickname is the display
// identity and the fallback matching key when no stable user id exists.
type Participant struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Nickname  string
	JoinedAt  time.Time
}
