package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/soilwatch/internal/reading"
)

// inboxSize is the per-connection buffer between transport callbacks and the loop.
const inboxSize = 64

// Logger defines the logging interface for the telemetry client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for Snapshot.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// DecodeErrorHandler receives messages that were dropped because they did not decode.
type DecodeErrorHandler func(topic string, payload []byte, err error)

type changeListener struct {
	id uint64
	fn func(Snapshot)
}

type errorListener struct {
	id uint64
	fn DecodeErrorHandler
}

// message is one inbound publish handed from the transport to the loop.
type message struct {
	topic   string
	payload []byte
}

// Client maintains the telemetry subscription and the latest snapshot.
type Client struct {
	cfg    Config
	dialer Dialer
	logger Logger
	now    func() time.Time

	snapshot atomic.Pointer[Snapshot]
	notifier *notifier

	listenersMu     sync.RWMutex
	nextListenerID  uint64
	changeListeners []changeListener
	errorListeners  []errorListener

	// lifecycleMu serialises Start and Stop. The loop goroutine never takes it.
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}

	attempts     atomic.Uint64
	connections  atomic.Uint64
	readings     atomic.Uint64
	decodeErrors atomic.Uint64

	errMu     sync.Mutex
	lastError error
}

// New creates a stopped client. The snapshot starts disconnected with no reading.
func New(cfg Config, dialer Dialer, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidConfig)
	}

	c := &Client{
		cfg:    cfg.withDefaults(),
		dialer: dialer,
		logger: noopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.notifier = newNotifier(c.logger)
	c.snapshot.Store(&Snapshot{State: StateDisconnected, UpdatedAt: c.now()})

	return c, nil
}

// ClientID returns the identifier presented to the broker on every connection.
func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

// Topic returns the subscribed topic.
func (c *Client) Topic() string {
	return c.cfg.Topic
}

// Snapshot returns the current snapshot.
func (c *Client) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Stats returns the client counters.
func (c *Client) Stats() Stats {
	s := Stats{
		ClientID:        c.cfg.ClientID,
		State:           c.Snapshot().State,
		ConnectAttempts: c.attempts.Load(),
		Connections:     c.connections.Load(),
		Readings:        c.readings.Load(),
		DecodeErrors:    c.decodeErrors.Load(),
	}
	c.errMu.Lock()
	if c.lastError != nil {
		s.LastError = c.lastError.Error()
	}
	c.errMu.Unlock()
	return s
}

// OnChange registers fn to receive every committed snapshot.
// The returned function unregisters it and may be called more than once.
func (c *Client) OnChange(fn func(Snapshot)) (unregister func()) {
	c.listenersMu.Lock()
	c.nextListenerID++
	id := c.nextListenerID
	c.changeListeners = append(c.changeListeners, changeListener{id: id, fn: fn})
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		for i, l := range c.changeListeners {
			if l.id == id {
				c.changeListeners = append(c.changeListeners[:i:i], c.changeListeners[i+1:]...)
				return
			}
		}
	}
}

// OnDecodeError registers fn to receive messages dropped by the decoder.
func (c *Client) OnDecodeError(fn DecodeErrorHandler) (unregister func()) {
	c.listenersMu.Lock()
	c.nextListenerID++
	id := c.nextListenerID
	c.errorListeners = append(c.errorListeners, errorListener{id: id, fn: fn})
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		for i, l := range c.errorListeners {
			if l.id == id {
				c.errorListeners = append(c.errorListeners[:i:i], c.errorListeners[i+1:]...)
				return
			}
		}
	}
}

// Start begins connecting in the background. It is a no-op while running.
func (c *Client) Start() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	c.logger.Info("telemetry client starting",
		"broker", c.cfg.BrokerEndpoint,
		"topic", c.cfg.Topic,
		"client_id", c.cfg.ClientID,
	)

	go c.run(ctx, done)
}

// Stop closes the transport and waits for the loop to exit.
// It is a no-op if the client is not running.
func (c *Client) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.cancel == nil {
		return
	}

	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil

	c.logger.Info("telemetry client stopped", "client_id", c.cfg.ClientID)
}

// run is the event loop. Every snapshot commit for this run happens here.
func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.commit(func(s *Snapshot) {
		s.State = StateDisconnected
		s.Reading = reading.SensorReading{}
		s.HasReading = false
	})

	for {
		c.attempts.Add(1)
		c.setState(StateConnecting)

		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}

		c.recordError(err)
		c.logger.Warn("telemetry link down, will retry",
			"error", err,
			"retry_in", c.cfg.ReconnectInterval,
		)
		c.setState(StateReconnecting)

		timer := time.NewTimer(c.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials one transport, subscribes and applies its messages until
// the transport ends or ctx is cancelled. It always returns a non-nil error.
func (c *Client) session(ctx context.Context) error {
	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, err := c.dialer.Dial(dialCtx, DialOptions{
		Endpoint: c.cfg.BrokerEndpoint,
		ClientID: c.cfg.ClientID,
		Timeout:  c.cfg.ConnectTimeout,
	})
	timedOut := errors.Is(dialCtx.Err(), context.DeadlineExceeded)
	cancelDial()
	if err != nil {
		if timedOut && ctx.Err() == nil && !errors.Is(err, ErrConnectTimeout) {
			return fmt.Errorf("%w after %s: %w", ErrConnectTimeout, c.cfg.ConnectTimeout, err)
		}
		return fmt.Errorf("dialing %s: %w", c.cfg.BrokerEndpoint, err)
	}
	defer conn.Close()

	// Handlers still holding a reference after this session ends must not
	// block or reach the loop.
	closed := make(chan struct{})
	defer close(closed)

	c.connections.Add(1)
	c.setState(StateConnected)
	c.logger.Info("telemetry link up", "broker", c.cfg.BrokerEndpoint)

	inbox := make(chan message, inboxSize)
	handler := func(topic string, payload []byte) {
		msg := message{topic: topic, payload: bytes.Clone(payload)}
		select {
		case inbox <- msg:
		case <-closed:
		}
	}

	subCtx, cancelSub := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	err = conn.Subscribe(subCtx, c.cfg.Topic, handler)
	cancelSub()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribe, c.cfg.Topic, err)
	}
	c.logger.Debug("subscribed", "topic", c.cfg.Topic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-conn.Done():
			if err := conn.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrLinkLost, err)
			}
			return ErrLinkLost
		case msg := <-inbox:
			c.apply(msg)
		}
	}
}

// apply decodes one message and commits it if valid.
func (c *Client) apply(msg message) {
	if msg.topic != c.cfg.Topic {
		c.logger.Debug("ignoring message on unexpected topic", "topic", msg.topic)
		return
	}

	r, err := reading.Decode(msg.payload)
	if err != nil {
		c.decodeErrors.Add(1)
		c.logger.Warn("dropping telemetry message",
			"topic", msg.topic,
			"error", err,
			"size", len(msg.payload),
		)
		c.publishDecodeError(msg, err)
		return
	}

	c.readings.Add(1)
	c.commit(func(s *Snapshot) {
		s.Reading = r
		s.HasReading = true
	})
}

func (c *Client) setState(state ConnectionState) {
	c.commit(func(s *Snapshot) {
		s.State = state
	})
	c.logger.Debug("telemetry state", "state", state)
}

// commit replaces the snapshot with a mutated copy and queues notification.
// Only the loop goroutine calls commit.
func (c *Client) commit(mutate func(*Snapshot)) {
	next := *c.snapshot.Load()
	mutate(&next)
	next.UpdatedAt = c.now()
	c.snapshot.Store(&next)

	c.notifier.enqueue(func() {
		c.listenersMu.RLock()
		listeners := make([]func(Snapshot), len(c.changeListeners))
		for i, l := range c.changeListeners {
			listeners[i] = l.fn
		}
		c.listenersMu.RUnlock()

		for _, fn := range listeners {
			c.notifier.call(func() { fn(next) })
		}
	})
}

func (c *Client) publishDecodeError(msg message, err error) {
	c.notifier.enqueue(func() {
		c.listenersMu.RLock()
		listeners := make([]DecodeErrorHandler, len(c.errorListeners))
		for i, l := range c.errorListeners {
			listeners[i] = l.fn
		}
		c.listenersMu.RUnlock()

		for _, fn := range listeners {
			c.notifier.call(func() { fn(msg.topic, msg.payload, err) })
		}
	})
}

func (c *Client) recordError(err error) {
	c.errMu.Lock()
	c.lastError = err
	c.errMu.Unlock()
}
