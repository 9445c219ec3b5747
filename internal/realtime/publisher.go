package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Stream configuration shared by publisher and consumer.
const (
	StreamName    = "ENCORE_EVENTS"
	subjectPrefix = "encore.events"
)

// subjectFor builds the JetStream subject for an event:
// encore.events.<family>.<session_code>.
func subjectFor(ev *Event) string {
	family := FamilySession
	switch ev.Type {
	case EventTypeBandSetup, EventTypeBandStart, EventTypeBandStop,
		EventTypeBandHit, EventTypeBandMiss:
		family = FamilyBand
	}
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, family, ev.SessionCode)
}

// Publisher publishes control events to JetStream. Correctness-critical
// transitions are persisted to the durable store before being published
// here; the published event is a low-latency hint for subscribers.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher connects to NATS and ensures the event stream exists.
func NewPublisher(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subjectPrefix + ".>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends the event to the stream.
func (p *Publisher) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, subjectFor(ev), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	log.Debug().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Str("session_code", ev.SessionCode).
		Msg("event published")
	return nil
}

// Close shuts the NATS connection down.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
