// Package mqtt provides broker transports for SoilWatch over paho.mqtt.golang.
//
// This package manages:
//   - Single-session connections to an MQTT broker (tcp, ssl, ws, wss)
//   - QoS 0 topic subscriptions with SUBACK failure detection
//   - Publishing for development tooling
//   - Loss detection through Conn.Done and Conn.Err
//
// # Architecture
//
// Reconnection belongs to the caller. Every Dial produces a fresh clean
// session with paho's auto-reconnect disabled, so a Conn never resurrects
// itself and subscriptions are always re-issued on the next Conn.
//
//	telemetry.Client ──Dial──▶ Conn ──Subscribe──▶ broker
//	        ▲                    │
//	        └──── Done / Err ◀───┘
//
// # Security Considerations
//
//   - ssl, tls, mqtts and wss endpoints require TLS 1.2 or newer
//   - No broker authentication is configured
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	dialer := mqtt.NewDialer(60 * time.Second)
//	conn, err := dialer.Dial(ctx, mqtt.DialOptions{
//	    Endpoint: "wss://broker.hivemq.com:8000/mqtt",
//	    ClientID: "soilwatch-3f9a1c2e",
//	    Timeout:  30 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	err = conn.Subscribe(ctx, "smart_irrigation/soil_data",
//	    func(topic string, payload []byte) {
//	        inbox <- payload
//	    })
//
//	<-conn.Done()
//	log.Println("link lost:", conn.Err())
package mqtt
