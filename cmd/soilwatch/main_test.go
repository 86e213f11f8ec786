package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/soilwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/soilwatch/internal/telemetry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, []string{"--config", "/nonexistent/path/config.yaml"}); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_WildcardTopic verifies run rejects a wildcard subscription topic.
func TestRun_WildcardTopic(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  broker_endpoint: "tcp://127.0.0.1:1883"
  topic: "smart_irrigation/#"
api:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, []string{"-c", path}); err == nil {
		t.Fatal("run() should fail with a wildcard topic")
	}
}

// TestRun_ShutsDownOnCancel verifies a clean exit while the broker is unreachable.
func TestRun_ShutsDownOnCancel(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  broker_endpoint: "tcp://127.0.0.1:1"
  topic: "smart_irrigation/soil_data"
  reconnect_interval: 20ms
  connect_timeout: 500ms
api:
  enabled: false
metrics:
  enabled: true
  path: /metrics
logging:
  level: error
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"--config", path}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

// TestRun_APIPassesHealthCheck verifies startup completes with the API enabled.
func TestRun_APIPassesHealthCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	path := writeConfig(t, fmt.Sprintf(`
telemetry:
  broker_endpoint: "tcp://127.0.0.1:1"
  topic: "smart_irrigation/soil_data"
  reconnect_interval: 20ms
  connect_timeout: 500ms
api:
  enabled: true
  host: "127.0.0.1"
  port: %d
  timeouts:
    read: 5
    write: 5
    idle: 5
metrics:
  enabled: true
  path: /metrics
logging:
  level: error
  format: text
  output: stdout
`, port))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"--config", path}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

// TestParseFlags_Help verifies --help is surfaced as pflag.ErrHelp.
func TestParseFlags_Help(t *testing.T) {
	if _, err := parseFlags([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("parseFlags(--help) error = %v, want pflag.ErrHelp", err)
	}
}

// TestParseFlags_Precedence verifies flag, then environment, then default.
func TestParseFlags_Precedence(t *testing.T) {
	t.Setenv(configEnv, "/env/config.yaml")

	path, err := parseFlags([]string{"--config", "/flag/config.yaml"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if path != "/flag/config.yaml" {
		t.Errorf("path = %q, want flag value", path)
	}

	path, err = parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if path != "/env/config.yaml" {
		t.Errorf("path = %q, want env value", path)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnv, "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestBrokerDialer_ErrorReturnsNilConn verifies failed dials yield an untyped nil.
func TestBrokerDialer_ErrorReturnsNilConn(t *testing.T) {
	d := brokerDialer{mqtt.NewDialer(0)}

	conn, err := d.Dial(context.Background(), telemetry.DialOptions{
		Endpoint: "gopher://example.com",
		ClientID: "soilwatch-test",
		Timeout:  time.Second,
	})
	if !errors.Is(err, mqtt.ErrInvalidEndpoint) {
		t.Errorf("Dial() error = %v, want ErrInvalidEndpoint", err)
	}
	if conn != nil {
		t.Errorf("Dial() conn = %#v, want nil interface", conn)
	}
}

// TestBrokerDialer_SilentBrokerTimesOut verifies an unanswered CONNECT is
// reported as a connect timeout.
func TestBrokerDialer_SilentBrokerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// Hold the socket open without ever sending CONNACK.
			defer conn.Close()
		}
	}()

	d := brokerDialer{mqtt.NewDialer(0)}
	conn, err := d.Dial(context.Background(), telemetry.DialOptions{
		Endpoint: "tcp://" + ln.Addr().String(),
		ClientID: "soilwatch-test",
		Timeout:  200 * time.Millisecond,
	})
	if !errors.Is(err, telemetry.ErrConnectTimeout) {
		t.Errorf("Dial() error = %v, want ErrConnectTimeout", err)
	}
	if !errors.Is(err, mqtt.ErrTimeout) {
		t.Errorf("Dial() error = %v, want mqtt.ErrTimeout", err)
	}
	if conn != nil {
		t.Errorf("Dial() conn = %#v, want nil interface", conn)
	}
}
