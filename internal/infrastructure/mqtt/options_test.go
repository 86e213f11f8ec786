package mqtt

import (
	"crypto/tls"
	"errors"
	"testing"
	"time"
)

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantTLS  bool
	}{
		{"tcp", "tcp://127.0.0.1:1883", false},
		{"mqtt", "mqtt://broker.local:1883", false},
		{"websocket", "ws://broker.local:8000/mqtt", false},
		{"ssl", "ssl://broker.local:8883", true},
		{"tls", "tls://broker.local:8883", true},
		{"mqtts", "mqtts://broker.local:8883", true},
		{"secure websocket", "wss://broker.hivemq.com:8000/mqtt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := buildClientOptions(DialOptions{
				Endpoint: tt.endpoint,
				ClientID: "soilwatch-abc12345",
				Timeout:  10 * time.Second,
			}, 45*time.Second)
			if err != nil {
				t.Fatalf("buildClientOptions() error = %v", err)
			}

			if len(opts.Servers) != 1 || opts.Servers[0].String() != tt.endpoint {
				t.Errorf("Servers = %v, want [%s]", opts.Servers, tt.endpoint)
			}
			if opts.ClientID != "soilwatch-abc12345" {
				t.Errorf("ClientID = %q", opts.ClientID)
			}
			if !opts.CleanSession {
				t.Error("CleanSession = false, want true")
			}
			if opts.AutoReconnect || opts.ConnectRetry {
				t.Errorf("AutoReconnect = %v, ConnectRetry = %v; want both false", opts.AutoReconnect, opts.ConnectRetry)
			}
			if want := 10*time.Second + connectTimeoutGrace; opts.ConnectTimeout != want {
				t.Errorf("ConnectTimeout = %v, want %v", opts.ConnectTimeout, want)
			}
			if opts.KeepAlive != 45 {
				t.Errorf("KeepAlive = %d, want 45", opts.KeepAlive)
			}

			hasTLS := opts.TLSConfig != nil
			if hasTLS != tt.wantTLS {
				t.Fatalf("TLS configured = %v, want %v", hasTLS, tt.wantTLS)
			}
			if hasTLS && opts.TLSConfig.MinVersion != tls.VersionTLS12 {
				t.Errorf("TLS MinVersion = %x, want TLS 1.2", opts.TLSConfig.MinVersion)
			}
		})
	}
}

func TestBuildClientOptions_Defaults(t *testing.T) {
	opts, err := buildClientOptions(DialOptions{Endpoint: "tcp://127.0.0.1:1883"}, 0)
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if want := defaultConnectTimeout + connectTimeoutGrace; opts.ConnectTimeout != want {
		t.Errorf("ConnectTimeout = %v, want %v", opts.ConnectTimeout, want)
	}
	if opts.KeepAlive != int64(defaultKeepAlive/time.Second) {
		t.Errorf("KeepAlive = %d, want %d", opts.KeepAlive, int64(defaultKeepAlive/time.Second))
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	tests := []string{
		"http://broker.local:1883",
		"broker.local:1883",
		"tcp://",
		"://nope",
		"",
	}

	for _, endpoint := range tests {
		t.Run(endpoint, func(t *testing.T) {
			if _, _, err := parseEndpoint(endpoint); !errors.Is(err, ErrInvalidEndpoint) {
				t.Errorf("parseEndpoint(%q) error = %v, want ErrInvalidEndpoint", endpoint, err)
			}
		})
	}
}
