package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// KeepAliveInterval is how often a connected client sends the probe.
	KeepAliveInterval = 25 * time.Second

	reconnectBase        = 1 * time.Second
	reconnectCap         = 30 * time.Second
	maxReconnectAttempts = 10
)

// Dialer opens one transport connection for a session code.
type Dialer interface {
	Dial(sessionCode string) (ClientConn, error)
}

// ClientConn is the transport surface the client needs.
type ClientConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// WebsocketDialer dials the hub's websocket endpoint for one topic family.
type WebsocketDialer struct {
	// BaseURL is e.g. "ws://host:8080/api/ws".
	BaseURL string
	// Family selects the topic family, e.g. FamilyBand.
	Family string
	// Nickname identifies this client to the hub.
	Nickname string
}

type gorillaConn struct {
	ws *websocket.Conn
}

func (g *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := g.ws.ReadMessage()
	return data, err
}

func (g *gorillaConn) WriteMessage(data []byte) error {
	return g.ws.WriteMessage(websocket.TextMessage, data)
}

func (g *gorillaConn) Close() error { return g.ws.Close() }

// Dial opens a websocket to the hub.
func (d *WebsocketDialer) Dial(sessionCode string) (ClientConn, error) {
	url := fmt.Sprintf("%s/%s/%s?nickname=%s", d.BaseURL, d.Family, sessionCode, d.Nickname)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &gorillaConn{ws: ws}, nil
}

// Client maintains one logical connection per session code. It shields
// consumers from transport churn and duplicate delivery: it reconnects with
// exponential backoff, answers are deduplicated with a single-slot
// fingerprint plus a last-round-id check, and the keep-alive response is
// swallowed before it reaches consumers.
//
// The connection state and dedup slots live on the Client itself, not in
// closures, so every callback observes the current values.
type Client struct {
	dialer Dialer
	clock  clockwork.Clock

	mu             sync.Mutex
	code           string
	conn           ClientConn
	connected      bool
	attempts       int
	gen            int
	reconnectTimer clockwork.Timer
	stopKeepalive  chan struct{}
	dedup          Dedup

	// writeMu serializes transport writes: the keep-alive probe and Send
	// run on different goroutines and the websocket forbids concurrent
	// writers.
	writeMu sync.Mutex

	events chan *Event
}

// NewClient creates a disconnected client. A nil clock means wall clock.
func NewClient(dialer Dialer, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		dialer: dialer,
		clock:  clock,
		events: make(chan *Event, 64),
	}
}

// Events is the stream of accepted inbound events.
func (c *Client) Events() <-chan *Event { return c.events }

// Connected reports the current transport state.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect opens a connection for the session code. Already connected to the
// same code is a no-op; a different code tears the old connection down
// first. An empty code is a normal idle state, not an error.
func (c *Client) Connect(sessionCode string) {
	if sessionCode == "" {
		log.Debug().Msg("no session code available, skipping connect")
		return
	}

	c.mu.Lock()
	if c.connected && c.code == sessionCode {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.code = sessionCode
	c.attempts = 0
	gen := c.gen
	c.mu.Unlock()

	c.dial(gen)
}

// Disconnect cancels any pending reconnect, stops the keep-alive probe and
// closes the transport. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.attempts = 0
}

// teardownLocked invalidates the current connection generation so that any
// in-flight read loop or reconnect timer for it becomes a no-op.
func (c *Client) teardownLocked() {
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.stopKeepalive != nil {
		close(c.stopKeepalive)
		c.stopKeepalive = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.dedup.Reset()
}

func (c *Client) dial(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	code := c.code
	c.mu.Unlock()

	conn, err := c.dialer.Dial(code)
	if err != nil {
		log.Warn().Err(err).Str("session_code", code).Msg("connect failed")
		c.scheduleReconnect(gen)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.dedup.Reset()
	stop := make(chan struct{})
	c.stopKeepalive = stop
	c.mu.Unlock()

	log.Info().Str("session_code", code).Msg("realtime client connected")

	go c.keepalive(conn, stop)
	go c.readLoop(conn, gen)
}

// keepalive sends the probe on a fixed interval until stopped.
func (c *Client) keepalive(conn ClientConn, stop chan struct{}) {
	ticker := c.clock.NewTicker(KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if err := c.write(conn, []byte(KeepAliveProbe)); err != nil {
				log.Debug().Err(err).Msg("keep-alive probe failed")
				return
			}
		}
	}
}

func (c *Client) readLoop(conn ClientConn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}

		// A recognized keep-alive response is swallowed here.
		if string(data) == KeepAliveResponse {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			log.Warn().Msg("dropping malformed inbound payload")
			continue
		}

		roundID, _ := ev.RoundID()

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		accepted := c.dedup.Admit(data, roundID)
		c.mu.Unlock()

		if !accepted {
			log.Debug().Str("event_type", string(ev.Type)).Msg("dropping duplicate inbound event")
			continue
		}

		select {
		case c.events <- &ev:
		default:
			log.Warn().Str("event_type", string(ev.Type)).Msg("event buffer full, dropping inbound event")
		}
	}
}

func (c *Client) handleClose(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.connected = false
	if c.stopKeepalive != nil {
		close(c.stopKeepalive)
		c.stopKeepalive = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	log.Warn().Err(cause).Msg("realtime connection closed")
	c.scheduleReconnect(gen)
}

// scheduleReconnect arms the backoff timer: 1s doubling per attempt, capped
// at 30s, abandoned after 10 tries. Past that point consumers observe
// "disconnected" until a new Connect call retriggers the cycle.
func (c *Client) scheduleReconnect(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.attempts >= maxReconnectAttempts {
		c.mu.Unlock()
		log.Error().
			Int("attempts", maxReconnectAttempts).
			Msg("giving up on reconnect, manual connect required")
		return
	}
	c.attempts++
	delay := backoffDelay(c.attempts)
	timer := c.clock.NewTimer(delay)
	c.reconnectTimer = timer
	attempt := c.attempts
	c.mu.Unlock()

	log.Info().
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("scheduling reconnect")

	go func() {
		<-timer.Chan()
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.dial(gen)
	}()
}

// backoffDelay returns the delay before the given 1-based attempt.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := reconnectBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= reconnectCap {
			return reconnectCap
		}
	}
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}

// ErrNotConnected is returned by Send when no transport is open.
var ErrNotConnected = errors.New("realtime: not connected")

// Send publishes an event on the open connection. Delivery is best effort;
// callers must not rely on it for correctness-critical transitions.
func (c *Client) Send(ev *Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.write(conn, data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

// write is the single funnel for transport writes.
func (c *Client) write(conn ClientConn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(data)
}
