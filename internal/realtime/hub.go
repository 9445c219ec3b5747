package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Keep-alive probe payloads. Clients send the probe on a fixed interval and
// the hub answers; the response is never forwarded to consumers.
const (
	KeepAliveProbe    = "ping"
	KeepAliveResponse = "pong"
)

// Hub fans events out to websocket subscribers, one pool per topic.
type Hub struct {
	topics map[string]map[*Conn]bool
	mu     sync.RWMutex

	upgrader websocket.Upgrader
	config   HubConfig

	broadcastCh chan outbound

	// Optional hook invoked for every well-formed event received from a
	// client, after it has been re-broadcast to the topic.
	inbound InboundFunc
}

// InboundFunc observes client-published events (hit/miss feedback, ambient
// reactions). It must not block.
type InboundFunc func(topic string, ev *Event)

// Conn is one websocket subscriber.
type Conn struct {
	ID       string
	Topic    string
	Nickname string

	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	ConnectedAt time.Time
}

// HubConfig holds websocket tuning for the hub.
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type outbound struct {
	topic   string
	data    []byte
	exclude *Conn
}

// DefaultHubConfig returns the default websocket tuning.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewHub creates a websocket hub.
func NewHub(config HubConfig) *Hub {
	return &Hub{
		topics: make(map[string]map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan outbound, 1000),
	}
}

// SetInboundHandler registers the hook for client-published events.
// Must be called before Serve.
func (h *Hub) SetInboundHandler(fn InboundFunc) {
	h.inbound = fn
}

// Run processes broadcast messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("realtime hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("realtime hub shutting down")
			return
		case msg := <-h.broadcastCh:
			h.deliver(msg)
		}
	}
}

// Serve upgrades an HTTP request to a websocket subscribed to topic.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic, nickname string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("failed to upgrade websocket connection")
		return fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Conn{
		ID:          uuid.New().String(),
		Topic:       topic,
		Nickname:    nickname,
		ws:          ws,
		send:        make(chan []byte, 256),
		hub:         h,
		ConnectedAt: time.Now(),
	}

	h.register(conn)

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("topic", topic).
		Str("nickname", nickname).
		Msg("websocket connection established")

	return nil
}

func (h *Hub) register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[conn.Topic] == nil {
		h.topics[conn.Topic] = make(map[*Conn]bool)
	}
	h.topics[conn.Topic][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("topic", conn.Topic).
		Int("subscribers", len(h.topics[conn.Topic])).
		Msg("connection registered")
}

func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, exists := h.topics[conn.Topic]; exists {
		if _, exists := conns[conn]; exists {
			delete(conns, conn)
			close(conn.send)

			if len(conns) == 0 {
				delete(h.topics, conn.Topic)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("topic", conn.Topic).
				Msg("connection unregistered")
		}
	}
}

// Broadcast queues an event for every subscriber of the topic.
func (h *Hub) Broadcast(topic string, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("failed to marshal event for broadcast")
		return
	}
	select {
	case h.broadcastCh <- outbound{topic: topic, data: data}:
	default:
		log.Warn().Str("topic", topic).Msg("broadcast channel full, dropping message")
	}
}

// rebroadcast fans a client-published event back out to the topic,
// excluding the publisher.
func (h *Hub) rebroadcast(topic string, data []byte, from *Conn) {
	select {
	case h.broadcastCh <- outbound{topic: topic, data: data, exclude: from}:
	default:
		log.Warn().Str("topic", topic).Msg("broadcast channel full, dropping client message")
	}
}

func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	conns, exists := h.topics[msg.topic]
	if !exists {
		h.mu.RUnlock()
		return
	}

	targets := make([]*Conn, 0, len(conns))
	for conn := range conns {
		if conn == msg.exclude {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.send <- msg.data:
		default:
			// Connection is slow/dead, close it.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("topic", conn.Topic).
				Msg("connection send buffer full, closing connection")
			h.unregister(conn)
			conn.ws.Close()
		}
	}
}

// Stats returns subscriber counts per topic.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.topics))
	for topic, conns := range h.topics {
		counts[topic] = len(conns)
	}
	return counts
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

// handleClientMessage answers keep-alive probes and re-broadcasts
// well-formed client events to the rest of the topic. Malformed payloads are
// dropped and logged; they never tear down the connection.
func (c *Conn) handleClientMessage(message []byte) {
	if string(message) == KeepAliveProbe {
		select {
		case c.send <- []byte(KeepAliveResponse):
		default:
		}
		return
	}

	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil || ev.Type == "" {
		log.Warn().
			Str("connection_id", c.ID).
			Str("topic", c.Topic).
			Msg("dropping malformed client payload")
		return
	}

	c.hub.rebroadcast(c.Topic, message, c)

	if c.hub.inbound != nil {
		c.hub.inbound(c.Topic, &ev)
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("topic", c.Topic).
		Str("event_type", string(ev.Type)).
		Msg("client event re-broadcast")
}
