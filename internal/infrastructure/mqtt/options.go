package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when DialOptions.Timeout is zero.
	defaultConnectTimeout = 30 * time.Second

	// connectTimeoutGrace keeps paho's own CONNECT timer behind Dial's
	// deadline, so a slow handshake always surfaces as ErrTimeout.
	connectTimeoutGrace = time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// subscribeQoS is the delivery level requested for telemetry: at most once.
	subscribeQoS = 0

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// subackFailure is the SUBACK return code for a refused subscription.
	subackFailure = 0x80

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// schemes maps each accepted broker URL scheme to whether it uses TLS.
var schemes = map[string]bool{
	"tcp":   false,
	"mqtt":  false,
	"ws":    false,
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"wss":   true,
}

// parseEndpoint validates a broker URL.
func parseEndpoint(endpoint string) (*url.URL, bool, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	secure, ok := schemes[u.Scheme]
	if !ok {
		return nil, false, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, false, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, endpoint)
	}
	return u, secure, nil
}

// connectTimeout returns the bound on one CONNECT handshake.
func connectTimeout(opts DialOptions) time.Duration {
	if opts.Timeout <= 0 {
		return defaultConnectTimeout
	}
	return opts.Timeout
}

// buildClientOptions creates paho MQTT options for a single connection.
//
// This configures:
//   - Broker URL (tcp, ssl, ws or wss)
//   - Client ID for identification
//   - Clean session mode
//   - No paho-level reconnect; the caller owns retries
//   - TLS 1.2+ for secure schemes
func buildClientOptions(opts DialOptions, keepAlive time.Duration) (*pahomqtt.ClientOptions, error) {
	_, secure, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	o := pahomqtt.NewClientOptions()
	o.AddBroker(opts.Endpoint)
	o.SetClientID(opts.ClientID)

	// Clean session - the broker never carries subscriptions across connections
	o.SetCleanSession(true)

	o.SetAutoReconnect(false)
	o.SetConnectRetry(false)

	o.SetConnectTimeout(connectTimeout(opts) + connectTimeoutGrace)

	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	o.SetKeepAlive(keepAlive)

	if secure {
		o.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return o, nil
}
