// Package telemetry maintains the broker subscription for soil sensor
// readings and publishes a consistent snapshot of the latest reading and
// link state.
//
// # Architecture
//
// A Client owns one logical subscription to one topic across any number of
// transport connections. A single event-loop goroutine per running client
// performs every state transition and snapshot commit:
//
//	disconnected ──Start──▶ connecting ──dial ok──▶ connected ─┐
//	                            │  ▲                   │       │ message: decode,
//	                  timeout / │  │ interval          │ lost  │ replace reading
//	                      error ▼  │                   ▼       │
//	                         reconnecting ◀────────────┘ ◀─────┘
//
//	any running state ──Stop──▶ disconnected (transport closed, reading cleared)
//
// The last good reading survives reconnects; consumers tell live data from
// stale data through Snapshot.State and Snapshot.UpdatedAt.
//
// # Concurrency
//
//   - Snapshot() is a lock-free atomic load and never blocks on the network.
//   - OnChange callbacks run on a notification goroutine in commit order,
//     outside all internal locks; a slow callback delays later callbacks
//     but never the transport.
//   - Stop() cancels any in-flight dial or pending retry timer and returns
//     once the loop has exited; nothing is committed after it returns.
//
// # Usage
//
//	client, err := telemetry.New(telemetry.Config{
//	    BrokerEndpoint: "wss://broker.hivemq.com:8000/mqtt",
//	    Topic:          "smart_irrigation/soil_data",
//	}, dialer, telemetry.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	unregister := client.OnChange(func(s telemetry.Snapshot) {
//	    log.Info("telemetry", "state", s.State)
//	})
//	defer unregister()
//
//	client.Start()
//	defer client.Stop()
package telemetry
