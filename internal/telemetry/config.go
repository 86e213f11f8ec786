package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultReconnectInterval is the fixed wait between connection attempts.
	DefaultReconnectInterval = time.Second

	// DefaultConnectTimeout bounds a single dial.
	DefaultConnectTimeout = 30 * time.Second

	clientIDPrefix = "soilwatch-"
)

// Config holds the telemetry client settings.
type Config struct {
	BrokerEndpoint    string
	Topic             string
	ClientID          string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
}

// NewClientID returns a random client identifier of the form soilwatch-<8 hex>.
func NewClientID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return clientIDPrefix + id[:8]
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ClientID == "" {
		c.ClientID = NewClientID()
	}
	return c
}

func (c Config) validate() error {
	var errs []string

	if strings.TrimSpace(c.BrokerEndpoint) == "" {
		errs = append(errs, "broker endpoint is required")
	}
	if c.Topic == "" {
		errs = append(errs, "topic is required")
	} else if strings.ContainsAny(c.Topic, "+#") {
		errs = append(errs, fmt.Sprintf("topic %q must not contain wildcards", c.Topic))
	}
	if c.ReconnectInterval < 0 {
		errs = append(errs, "reconnect interval must not be negative")
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, "connect timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// DialOptions carries the per-attempt connection parameters.
type DialOptions struct {
	Endpoint string
	ClientID string
	Timeout  time.Duration
}

// Dialer opens broker transports. Dial must return promptly once ctx is done.
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, opts DialOptions) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, opts DialOptions) (Conn, error) {
	return f(ctx, opts)
}

// Conn is one established broker transport.
//
// Subscribe registers handler for messages on topic and waits for the
// broker's acknowledgement. Done is closed when the transport is lost or
// closed; Err then reports the cause. Close is safe to call more than once.
type Conn interface {
	Subscribe(ctx context.Context, topic string, handler func(topic string, payload []byte)) error
	Done() <-chan struct{}
	Err() error
	Close() error
}
