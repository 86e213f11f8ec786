package telemetry

import "errors"

var (
	// ErrInvalidConfig is returned by New when the configuration is unusable.
	ErrInvalidConfig = errors.New("telemetry: invalid config")

	// ErrConnectTimeout is recorded when a dial does not complete within ConnectTimeout.
	ErrConnectTimeout = errors.New("telemetry: connect timed out")

	// ErrLinkLost is recorded when an established transport drops.
	ErrLinkLost = errors.New("telemetry: link lost")

	// ErrSubscribe is recorded when the broker does not accept the subscription.
	ErrSubscribe = errors.New("telemetry: subscribe failed")
)
