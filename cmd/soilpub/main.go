// soilpub publishes simulated soil sensor readings to an MQTT topic.
//
// It stands in for the field sensor during development: point SoilWatch
// and soilpub at the same broker and topic.
//
//	soilpub --broker tcp://localhost:1883 --interval 2s --count 10
//	soilpub --malformed 5   # every fifth message is an invalid payload
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/nerrad567/soilwatch/internal/infrastructure/config"
	"github.com/nerrad567/soilwatch/internal/infrastructure/logging"
	"github.com/nerrad567/soilwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/soilwatch/internal/telemetry"
)

var version = "dev"

// options are the parsed command-line flags.
type options struct {
	broker    string
	topic     string
	clientID  string
	interval  time.Duration
	count     int
	malformed int
	retained  bool
	seed      uint64
	logLevel  string
}

func main() {
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

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	log := logging.New(config.LoggingConfig{Level: opts.logLevel, Format: "text", Output: "stderr"}, version)

	dialer := mqtt.NewDialer(0)
	dialer.SetLogger(log)

	dialCtx, cancel := context.WithTimeout(ctx, telemetry.DefaultConnectTimeout)
	defer cancel()
	conn, err := dialer.Dial(dialCtx, mqtt.DialOptions{
		Endpoint: opts.broker,
		ClientID: opts.clientID,
	})
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer conn.Close()

	log.Info("publishing",
		"broker", opts.broker,
		"topic", opts.topic,
		"interval", opts.interval,
		"count", opts.count,
	)

	sent, err := publishLoop(ctx, conn, newGenerator(opts.seed, opts.malformed), opts, log)
	log.Info("done", "sent", sent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("soilpub", pflag.ContinueOnError)
	fs.StringVarP(&o.broker, "broker", "b", "tcp://localhost:1883", "Broker URL (tcp, ssl, ws, wss)")
	fs.StringVarP(&o.topic, "topic", "t", "smart_irrigation/soil_data", "Topic to publish on")
	fs.StringVar(&o.clientID, "client-id", "", "MQTT client ID (default: random)")
	fs.DurationVarP(&o.interval, "interval", "i", 2*time.Second, "Delay between messages")
	fs.IntVarP(&o.count, "count", "n", 0, "Messages to send (0 = until interrupted)")
	fs.IntVar(&o.malformed, "malformed", 0, "Send an invalid payload every Nth message (0 = never)")
	fs.BoolVar(&o.retained, "retained", false, "Publish with the retain flag")
	fs.Uint64Var(&o.seed, "seed", uint64(time.Now().UnixNano()), "Random seed for generated readings")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch {
	case o.interval <= 0:
		return o, fmt.Errorf("--interval must be positive")
	case o.count < 0:
		return o, fmt.Errorf("--count must not be negative")
	case o.malformed < 0:
		return o, fmt.Errorf("--malformed must not be negative")
	}
	if o.clientID == "" {
		o.clientID = "soilpub-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return o, nil
}

// publisher is the subset of *mqtt.Conn the loop needs.
type publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// publishLoop sends opts.count payloads, or runs until ctx is done when count is zero.
func publishLoop(ctx context.Context, pub publisher, gen *generator, opts options, log *logging.Logger) (int, error) {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	sent := 0
	for {
		payload, err := gen.next()
		if err != nil {
			return sent, fmt.Errorf("encoding reading: %w", err)
		}
		if err := pub.Publish(ctx, opts.topic, payload, 0, opts.retained); err != nil {
			return sent, err
		}
		sent++
		log.Debug("published", "seq", sent, "payload", string(payload))

		if opts.count > 0 && sent >= opts.count {
			return sent, nil
		}

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-ticker.C:
		}
	}
}
