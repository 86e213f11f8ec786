// SoilWatch - Soil Telemetry Monitor
//
// This is the main entry point for the SoilWatch daemon. It subscribes to
// a field sensor's MQTT topic and keeps the latest soil reading available:
//   - Continuous reconnection after broker or network loss
//   - Last reading retained (and flagged stale) while the link is down
//   - Read-only HTTP/WebSocket status surface
//   - Prometheus metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/soilwatch/internal/api"
	"github.com/nerrad567/soilwatch/internal/infrastructure/config"
	"github.com/nerrad567/soilwatch/internal/infrastructure/logging"
	"github.com/nerrad567/soilwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/soilwatch/internal/metrics"
	"github.com/nerrad567/soilwatch/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor SOILWATCH_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	configEnv = "SOILWATCH_CONFIG"

	// healthCheckTimeout bounds the startup health check.
	healthCheckTimeout = 5 * time.Second
)

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	configPath, err := parseFlags(args)
	if err != nil {
		return err
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SoilWatch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	dialer := mqtt.NewDialer(cfg.Telemetry.KeepAlive)
	dialer.SetLogger(log)

	client, err := telemetry.New(telemetry.Config{
		BrokerEndpoint:    cfg.Telemetry.BrokerEndpoint,
		Topic:             cfg.Telemetry.Topic,
		ClientID:          cfg.Telemetry.ClientID,
		ReconnectInterval: cfg.Telemetry.ReconnectInterval,
		ConnectTimeout:    cfg.Telemetry.ConnectTimeout,
	}, brokerDialer{dialer}, telemetry.WithLogger(log.With("component", "telemetry")))
	if err != nil {
		return fmt.Errorf("creating telemetry client: %w", err)
	}

	client.OnChange(func(s telemetry.Snapshot) {
		log.Debug("telemetry snapshot",
			"state", s.State,
			"has_reading", s.HasReading,
			"stale", s.Stale(),
		)
	})

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(client)
		defer collector.Close()
		log.Info("metrics enabled", "path", cfg.Metrics.Path)
	} else {
		log.Info("metrics disabled")
	}

	if cfg.API.Enabled {
		srv, srvErr := startAPIServer(ctx, cfg, log, client, collector)
		if srvErr != nil {
			return fmt.Errorf("starting API server: %w", srvErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	client.Start()
	defer func() {
		log.Info("stopping telemetry client")
		client.Stop()
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"client_id", client.ClientID(),
		"topic", client.Topic(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Telemetry client
	// 2. API server (if enabled)
	// 3. Metrics collector (if enabled)

	log.Info("SoilWatch stopped")
	return nil
}

// parseFlags returns the configuration path.
// --config wins over SOILWATCH_CONFIG, which wins over the default.
func parseFlags(args []string) (string, error) {
	fs := pflag.NewFlagSet("soilwatch", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "Path to config YAML (env "+configEnv+")")
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	if *configPath != "" {
		return *configPath, nil
	}
	return getConfigPath(), nil
}

// getConfigPath returns the configuration file path.
// Uses SOILWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// startAPIServer creates and starts the status server.
func startAPIServer(ctx context.Context, cfg *config.Config, log *logging.Logger, client *telemetry.Client, collector *metrics.Collector) (*api.Server, error) {
	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log.With("component", "api"),
		Telemetry: client,
		Version:   version,
	}
	if collector != nil {
		deps.Metrics = collector.Handler()
		deps.MetricsPath = cfg.Metrics.Path
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("API server started", "address", srv.Addr().String())

	if err := healthCheck(ctx, srv, log); err != nil {
		_ = srv.Close()
		return nil, err
	}
	return srv, nil
}

// healthCheck confirms the status server answers before startup completes.
func healthCheck(ctx context.Context, srv *api.Server, log *logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("API health check failed: %w", err)
	}
	log.Info("all health checks passed")
	return nil
}

// brokerDialer adapts the MQTT transport to the telemetry client.
type brokerDialer struct {
	dialer *mqtt.Dialer
}

func (d brokerDialer) Dial(ctx context.Context, opts telemetry.DialOptions) (telemetry.Conn, error) {
	conn, err := d.dialer.Dial(ctx, mqtt.DialOptions{
		Endpoint: opts.Endpoint,
		ClientID: opts.ClientID,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		if errors.Is(err, mqtt.ErrTimeout) {
			err = fmt.Errorf("%w: %w", telemetry.ErrConnectTimeout, err)
		}
		// A typed nil *mqtt.Conn must not escape as a non-nil interface.
		return nil, err
	}
	return conn, nil
}
