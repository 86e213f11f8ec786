package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrConnectionLost is reported by Conn.Err when the broker link drops.
	ErrConnectionLost = errors.New("mqtt: connection lost")

	// ErrClosed is reported by Conn.Err after Close, and returned by
	// operations on a closed connection.
	ErrClosed = errors.New("mqtt: connection closed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails,
	// including a SUBACK carrying the 0x80 failure code.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidEndpoint is returned when the broker URL cannot be used.
	ErrInvalidEndpoint = errors.New("mqtt: invalid broker endpoint")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
