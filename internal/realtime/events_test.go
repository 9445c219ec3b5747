package realtime

import (
	"testing"
	"time"
)

func TestEventRoundID(t *testing.T) {
	start, err := NewEvent("ABC123", EventTypeBandStart, BandStartPayload{
		RoundID: "round-1",
		Song:    "deepdown",
		StartAt: time.Now().Add(4 * time.Second),
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	id, ok := start.RoundID()
	if !ok || id != "round-1" {
		t.Errorf("band_start round id = %q, %v; want round-1, true", id, ok)
	}

	quiz, err := NewEvent("ABC123", EventTypeQuizStarted, QuizStartedPayload{QuizID: "q-7"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	id, ok = quiz.RoundID()
	if !ok || id != "q-7" {
		t.Errorf("quiz_started round id = %q, %v; want q-7, true", id, ok)
	}

	hit, err := NewEvent("ABC123", EventTypeBandHit, BandHitPayload{Nickname: "ale", Lane: 1})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if _, ok := hit.RoundID(); ok {
		t.Errorf("band_hit should not carry a round id")
	}
}

func TestTopicFor(t *testing.T) {
	ev := &Event{SessionCode: "ABC123", Type: EventTypeBandHit}
	if got := TopicFor(ev); got != "band_game_ABC123" {
		t.Errorf("band event topic = %q, want band_game_ABC123", got)
	}
	ev.Type = EventTypeReaction
	if got := TopicFor(ev); got != "pub_event_ABC123" {
		t.Errorf("session event topic = %q, want pub_event_ABC123", got)
	}
}
