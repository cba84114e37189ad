package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hangarlabs/hangar/models"
)

// WildcardTopic subscribers receive every decoded envelope regardless of its
// declared type.
const WildcardTopic = "*"

const (
	defaultBaseDelay   = time.Second
	defaultMaxAttempts = 5
)

var (
	// ErrClientClosed means Disconnect was called; the instance is terminal
	// and a new one must be constructed if the feed is needed again.
	ErrClientClosed = errors.New("stream client is closed")
)

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosed       State = "closed"
	StateReconnecting State = "reconnecting"
	StateAbandoned    State = "abandoned"
)

// Handler receives the data field of envelopes matching the subscribed type.
type Handler func(data json.RawMessage)

// EnvelopeHandler receives the full envelope; used by wildcard subscribers.
type EnvelopeHandler func(env models.Envelope)

type subscription struct {
	id uuid.UUID
	fn Handler
}

type envSubscription struct {
	id uuid.UUID
	fn EnvelopeHandler
}

type observer[T any] struct {
	id uuid.UUID
	fn T
}

type Config struct {
	// Address is the feed's resolved URL. Resolved once from configuration,
	// not re-resolved per attempt.
	Address string
	Header  http.Header
	Dialer  Dialer
	Logger  *slog.Logger

	// Reconnect attempt n waits BaseDelay*n; after MaxAttempts the client
	// stays Abandoned until an external Connect revives it.
	BaseDelay   time.Duration
	MaxAttempts int
}

// Client maintains one long-lived connection to a single feed and fans
// decoded envelopes out to its subscribers. At most one live transport handle
// exists at any time; Connect while Open or Connecting is a no-op.
type Client struct {
	addr        string
	header      http.Header
	dialer      Dialer
	logger      *slog.Logger
	baseDelay   time.Duration
	maxAttempts int

	mu           sync.Mutex
	state        State
	closed       bool
	conn         Conn
	gen          uint64
	attempts     int
	timer        *time.Timer
	subs         map[string][]subscription
	wildcard     []envSubscription
	onConnect    []observer[func()]
	onDisconnect []observer[func(err error)]
	onError      []observer[func(err error)]
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("feed address cannot be empty")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewDialer()
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Client{
		addr:        cfg.Address,
		header:      cfg.Header,
		dialer:      cfg.Dialer,
		logger:      cfg.Logger.WithGroup("stream").With("feed", cfg.Address),
		baseDelay:   cfg.BaseDelay,
		maxAttempts: cfg.MaxAttempts,
		state:       StateIdle,
		subs:        make(map[string][]subscription),
	}, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the reconnect-attempt counter. It increases on every
// failed cycle and resets to zero only when the connection reaches Open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect opens the transport. It is a no-op while Open or Connecting, an
// error after Disconnect, and otherwise dials; a dial failure feeds the same
// reconnection path as a transport close.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.dialer.Dial(c.addr, c.header)

	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		c.logger.Error("Failed to dial feed", "error", err)
		errFns := observerFns(c.onError)
		discFns := observerFns(c.onDisconnect)
		c.state = StateClosed
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		for _, fn := range errFns {
			fn(err)
		}
		for _, fn := range discFns {
			fn(err)
		}
		return nil
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	connectFns := observerFns(c.onConnect)
	c.mu.Unlock()

	c.logger.Info("Feed connected")
	for _, fn := range connectFns {
		fn()
	}
	go c.readLoop(gen, conn)
	return nil
}

// Send writes a JSON-serialized payload to the feed. Outside Open it is
// silently dropped; outbound messages are not queued across disconnects.
func (c *Client) Send(payload any) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		c.logger.Debug("Dropping outbound message, feed not open")
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Disconnect closes the feed for good: the transport is closed, all
// subscriber registries and observer sets are cleared, and the instance can
// never reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosed
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.subs = make(map[string][]subscription)
	c.wildcard = nil
	c.onConnect = nil
	c.onDisconnect = nil
	c.onError = nil
	c.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	c.logger.Info("Feed disconnected")
}

// Subscribe registers fn for envelopes of the given type. Dispatch among
// subscribers of one type follows registration order.
func (c *Client) Subscribe(eventType string, fn Handler) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.subs[eventType] = append(c.subs[eventType], subscription{id: id, fn: fn})
	return id
}

// SubscribeAll registers fn for every decoded envelope.
func (c *Client) SubscribeAll(fn EnvelopeHandler) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.wildcard = append(c.wildcard, envSubscription{id: id, fn: fn})
	return id
}

// Unsubscribe removes the subscription with the given id from eventType, or
// from the wildcard set when eventType is WildcardTopic.
func (c *Client) Unsubscribe(eventType string, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if eventType == WildcardTopic {
		for i, s := range c.wildcard {
			if s.id == id {
				c.wildcard = append(c.wildcard[:i], c.wildcard[i+1:]...)
				return
			}
		}
		return
	}
	list := c.subs[eventType]
	for i, s := range list {
		if s.id == id {
			c.subs[eventType] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// OnConnected registers an observer invoked every time the feed reaches Open.
func (c *Client) OnConnected(fn func()) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.onConnect = append(c.onConnect, observer[func()]{id: id, fn: fn})
	return id
}

// OnDisconnected registers an observer invoked when the transport closes.
func (c *Client) OnDisconnected(fn func(err error)) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.onDisconnect = append(c.onDisconnect, observer[func(err error)]{id: id, fn: fn})
	return id
}

// OnError registers an observer for transport-level errors. Errors do not
// themselves trigger reconnection; the close that follows them does.
func (c *Client) OnError(fn func(err error)) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.onError = append(c.onError, observer[func(err error)]{id: id, fn: fn})
	return id
}

func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Malformed input never reaches subscribers and never kills the
		// connection.
		c.logger.Error("Failed to decode feed message", "error", err, "message", string(raw))
		return
	}

	c.mu.Lock()
	typed := make([]Handler, len(c.subs[env.Type]))
	for i, s := range c.subs[env.Type] {
		typed[i] = s.fn
	}
	wild := make([]EnvelopeHandler, len(c.wildcard))
	for i, s := range c.wildcard {
		wild[i] = s.fn
	}
	c.mu.Unlock()

	for _, fn := range typed {
		fn(env.Data)
	}
	for _, fn := range wild {
		fn(env)
	}
}

func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed
	discFns := observerFns(c.onDisconnect)
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Error("Feed connection lost", "error", err)
	} else {
		c.logger.Info("Feed connection closed", "error", err)
	}
	for _, fn := range discFns {
		fn(err)
	}
}

func (c *Client) scheduleReconnectLocked() {
	c.attempts++
	if c.attempts > c.maxAttempts {
		c.state = StateAbandoned
		c.logger.Warn("Reconnect attempts exhausted, abandoning feed", "attempts", c.attempts-1)
		return
	}
	c.state = StateReconnecting
	delay := time.Duration(c.attempts) * c.baseDelay
	c.logger.Info("Scheduling reconnect", "attempt", c.attempts, "delay", delay)
	c.timer = time.AfterFunc(delay, func() {
		c.Connect()
	})
}

func observerFns[T any](obs []observer[T]) []T {
	fns := make([]T, len(obs))
	for i, o := range obs {
		fns[i] = o.fn
	}
	return fns
}
