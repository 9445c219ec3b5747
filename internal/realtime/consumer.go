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

// ConsumerConfig holds configuration for the JetStream fan-out consumer.
type ConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns the default consumer configuration.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    StreamName,
		ConsumerName:  "encore-gateway",
		SubjectFilter: subjectPrefix + ".>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Consumer consumes events from JetStream and fans them out to the hub's
// websocket subscribers.
type Consumer struct {
	hub      *Hub
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   ConsumerConfig
}

// NewConsumer connects to NATS and creates or reuses the durable consumer.
func NewConsumer(hub *Hub, config ConsumerConfig) (*Consumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	c := &Consumer{
		hub:    hub,
		nc:     nc,
		js:     js,
		config: config,
	}

	if err := c.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return c, nil
}

func (c *Consumer) ensureConsumer(ctx context.Context) error {
	stream, err := c.js.Stream(ctx, c.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          c.config.ConsumerName,
		Durable:       c.config.ConsumerName,
		Description:   "Encore gateway websocket consumer",
		FilterSubject: c.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.config.MaxDeliver,
		AckWait:       c.config.AckWait,
		MaxAckPending: c.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, c.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("using existing JetStream consumer")
	}

	c.consumer = consumer
	return nil
}

// Run consumes events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().
		Str("consumer", c.config.ConsumerName).
		Str("stream", c.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := c.processMessage(msg); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process message")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
			} else {
				if ackErr := msg.Ack(); ackErr != nil {
					log.Error().Err(ackErr).Msg("failed to ACK message")
				}
			}
		}
	}
}

func (c *Consumer) processMessage(msg jetstream.Msg) error {
	var ev Event
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if ev.Type == "" || ev.SessionCode == "" {
		return fmt.Errorf("incomplete event envelope on %s", msg.Subject())
	}

	c.hub.Broadcast(TopicFor(&ev), &ev)

	log.Debug().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Str("session_code", ev.SessionCode).
		Msg("event fanned out to websocket subscribers")

	return nil
}

// Close shuts the consumer down.
func (c *Consumer) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
