package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message carried on a session topic.
type Event struct {
	ID          string          `json:"id"`
	SessionCode string          `json:"session_code"`
	Type        EventType       `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// EventType tags the payload carried by an Event.
type EventType string

const (
	EventTypeBandSetup     EventType = "band_setup"
	EventTypeBandStart     EventType = "band_start"
	EventTypeBandStop      EventType = "band_stop"
	EventTypeBandHit       EventType = "band_hit"
	EventTypeBandMiss      EventType = "band_miss"
	EventTypeQuizStarted   EventType = "quiz_started"
	EventTypeQuizEnded     EventType = "quiz_ended"
	EventTypeReaction      EventType = "reaction"
	EventTypeSongRequested EventType = "song_requested"
)

// Topic families. One topic per session per mini-game family; every
// participant, the operator, and the display for that session subscribe to
// the same topic.
const (
	FamilyBand    = "band"
	FamilySession = "session"
)

// BandTopic names the band-game topic for a session code.
func BandTopic(code string) string { return "band_game_" + code }

// SessionTopic names the general ambient topic for a session code.
func SessionTopic(code string) string { return "pub_event_" + code }

// TopicFor routes an event type to its topic family.
func TopicFor(ev *Event) string {
	switch ev.Type {
	case EventTypeBandSetup, EventTypeBandStart, EventTypeBandStop,
		EventTypeBandHit, EventTypeBandMiss:
		return BandTopic(ev.SessionCode)
	default:
		return SessionTopic(ev.SessionCode)
	}
}

// Assignment maps a participant identity to a role slot for one round.
// Nickname is the fallback matching key when no stable user id exists.
type Assignment struct {
	UserID   string `json:"user_id,omitempty"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	Label    string `json:"label,omitempty"`
}

// BandSetupPayload carries role assignments only, no countdown.
type BandSetupPayload struct {
	Song        string       `json:"song"`
	Assignments []Assignment `json:"assignments"`
}

// BandStartPayload announces a round. StartAt is an absolute instant so that
// every client derives the same timeline regardless of delivery latency.
type BandStartPayload struct {
	RoundID     string       `json:"round_id"`
	Song        string       `json:"song"`
	StartAt     time.Time    `json:"start_at"`
	Assignments []Assignment `json:"assignments"`
}

// BandHitPayload is the best-effort per-note feedback from a controller.
type BandHitPayload struct {
	UserID   string  `json:"user_id,omitempty"`
	Nickname string  `json:"nickname"`
	Role     string  `json:"role"`
	Lane     int     `json:"lane"`
	Accuracy float64 `json:"accuracy"`
	Points   int     `json:"points"`
}

// BandMissPayload reports a missed input from a controller.
type BandMissPayload struct {
	UserID   string `json:"user_id,omitempty"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	Lane     int    `json:"lane"`
}

// QuizStartedPayload announces a quiz round.
type QuizStartedPayload struct {
	QuizID   string    `json:"quiz_id"`
	Question string    `json:"question"`
	Options  []string  `json:"options"`
	EndsAt   time.Time `json:"ends_at"`
}

// QuizEndedPayload closes a quiz round.
type QuizEndedPayload struct {
	QuizID       string `json:"quiz_id"`
	CorrectIndex int    `json:"correct_index"`
}

// ReactionPayload is an ambient emoji reaction.
type ReactionPayload struct {
	Nickname string `json:"nickname"`
	Emoji    string `json:"emoji"`
}

// SongRequestedPayload signals a new song request for the operator queue.
type SongRequestedPayload struct {
	Nickname string `json:"nickname"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
}

// NewEvent wraps a payload in an envelope with a fresh event id.
func NewEvent(code string, t EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:          uuid.New().String(),
		SessionCode: code,
		Type:        t,
		Timestamp:   time.Now().UTC(),
		Data:        data,
	}, nil
}

// RoundID extracts the round identifier for event kinds that start a round.
// It returns false for every other kind; those are deduplicated by
// fingerprint only.
func (e *Event) RoundID() (string, bool) {
	switch e.Type {
	case EventTypeBandStart:
		var p BandStartPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return "", false
		}
		return p.RoundID, p.RoundID != ""
	case EventTypeQuizStarted:
		var p QuizStartedPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return "", false
		}
		return p.QuizID, p.QuizID != ""
	default:
		return "", false
	}
}

// DecodePayload parses the event data into its typed payload struct.
func (e *Event) DecodePayload() (any, error) {
	switch e.Type {
	case EventTypeBandSetup:
		var p BandSetupPayload
		return &p, json.Unmarshal(e.Data, &p)
	case EventTypeBandStart:
		var p BandStartPayload
		return &p, json.Unmarshal(e.Data, &p)
	case EventTypeBandStop:
		return nil, nil
	case EventTypeBandHit:
		var p BandHitPayload
		return &p, json.Unmarshal(e.Data, &p)
	case EventTypeBandMiss:
		var p BandMissPayload
		return &p, json.Unmarshal(e.Data, &p)
	case EventTypeQuizStarted:
		var p QuizStartedPayload
		return &p, json.Unmarshal(e.Data, &p)
	case EventTypeQuizEnded:
		var p QuizEndedPayload
		return &p, json.Unmarshal(e.Data, &p)
	case EventTypeReaction:
		var p ReactionPayload
		return &p, json.Unmarshal(e.Data, &p)
	case EventTypeSongRequested:
		var p SongRequestedPayload
		return &p, json.Unmarshal(e.Data, &p)
	default:
		return nil, nil
	}
}
