package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// DialOptions identifies the broker and session for one connection.
type DialOptions struct {
	// Endpoint is the broker URL, e.g. "wss://broker.hivemq.com:8000/mqtt".
	Endpoint string

	// ClientID is presented to the broker in CONNECT.
	ClientID string

	// Timeout bounds the CONNECT handshake. Zero means 30 seconds.
	Timeout time.Duration
}

// Dialer opens single-use broker connections.
//
// Each Conn is one transport session: paho's own reconnect is disabled, so
// a lost link stays lost and the caller dials again.
//
// Thread Safety:
//   - Dial may be called concurrently.
type Dialer struct {
	keepAlive time.Duration
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	logger   Logger
	loggerMu sync.RWMutex
}

// NewDialer creates a Dialer. A non-positive keepAlive uses 60 seconds.
func NewDialer(keepAlive time.Duration) *Dialer {
	return &Dialer{
		keepAlive: keepAlive,
		newClient: pahomqtt.NewClient,
	}
}

// SetLogger sets a logger for error and panic logging on connections
// dialled afterwards. If not set, handler panics are recovered silently.
func (d *Dialer) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Dialer) getLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

// Dial connects to the broker and returns once CONNACK is received.
//
// Cancelling ctx aborts the wait; a handshake that completes afterwards is
// disconnected in the background.
//
// Returns:
//   - *Conn: Connected transport
//   - error: ErrInvalidEndpoint, ErrTimeout or ErrConnectionFailed (wrapped)
func (d *Dialer) Dial(ctx context.Context, opts DialOptions) (*Conn, error) {
	o, err := buildClientOptions(opts, d.keepAlive)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		logger: d.getLogger(),
		done:   make(chan struct{}),
	}
	o.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if c.logger != nil {
			c.logger.Warn("MQTT connection lost", "broker", opts.Endpoint, "error", err)
		}
		c.finish(fmt.Errorf("%w: %w", ErrConnectionLost, err))
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout(opts))
	defer cancel()

	c.client = d.newClient(o)
	token := c.client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		go abandon(c.client, token)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: connecting to %s: %w", ErrTimeout, opts.Endpoint, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// abandon tears down a connection whose dial was cancelled.
func abandon(client pahomqtt.Client, token pahomqtt.Token) {
	<-token.Done()
	if token.Error() == nil {
		client.Disconnect(0)
	}
}

// Conn is one established broker session.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Conn struct {
	client pahomqtt.Client
	logger Logger

	done       chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once

	errMu sync.RWMutex
	err   error
}

// Done is closed when the connection is lost or closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why Done was closed: ErrConnectionLost (wrapping the
// transport cause) or ErrClosed. It is nil while the connection is up.
func (c *Conn) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// finish records the first terminal cause and closes done.
func (c *Conn) finish(err error) {
	c.finishOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
	})
}

// Subscribe registers handler for topic at QoS 0 and waits for SUBACK.
//
// A SUBACK carrying the 0x80 failure code is reported as ErrSubscribeFailed.
// The handler is called on paho's delivery goroutine with panic recovery;
// it should hand off work rather than block.
func (c *Conn) Subscribe(ctx context.Context, topic string, handler func(topic string, payload []byte)) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	token := c.client.Subscribe(topic, subscribeQoS, c.wrapHandler(handler))
	if err := c.wait(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	if st, ok := token.(interface{ Result() map[string]byte }); ok {
		if code, found := st.Result()[topic]; found && code == subackFailure {
			return fmt.Errorf("%w: broker refused %q (suback 0x%02x)", ErrSubscribeFailed, topic, code)
		}
	}

	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgment
// appropriate to qos, bounded by five seconds.
func (c *Conn) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	token := c.client.Publish(topic, qos, retained, payload)
	if err := c.wait(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Close disconnects from the broker. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.client.Disconnect(defaultDisconnectQuiesce)
	})
	c.finish(ErrClosed)
	return nil
}

// wait blocks until token completes, ctx ends or the connection goes away.
func (c *Conn) wait(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return ctx.Err()
	case <-c.done:
		return c.Err()
	}
}

// wrapHandler wraps a handler with panic recovery and optional logging.
func (c *Conn) wrapHandler(handler func(topic string, payload []byte)) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if c.logger != nil {
					c.logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		handler(msg.Topic(), msg.Payload())
	}
}
