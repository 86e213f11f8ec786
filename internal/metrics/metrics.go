package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/soilwatch/internal/reading"
	"github.com/nerrad567/soilwatch/internal/telemetry"
)

const namespace = "soilwatch"

// kindUnknown labels decode errors that carry no reading.Kind.
const kindUnknown = "unknown"

// Source is the telemetry surface the collector follows.
type Source interface {
	Snapshot() telemetry.Snapshot
	Stats() telemetry.Stats
	OnChange(fn func(telemetry.Snapshot)) (unregister func())
	OnDecodeError(fn telemetry.DecodeErrorHandler) (unregister func())
}

// Collector maintains the Prometheus series for one telemetry source.
type Collector struct {
	registry *prometheus.Registry

	connectionState *prometheus.GaugeVec
	decodeErrors    *prometheus.CounterVec
	readingValue    *prometheus.GaugeVec
	lastUpdate      prometheus.Gauge

	unregister []func()
}

// New registers the telemetry series and starts following src.
func New(src Source) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Telemetry link state; 1 for the current state, 0 otherwise.",
		}, []string{"state"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Messages dropped because they failed to decode.",
		}, []string{"kind"}),
		readingValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Latest accepted sensor value by field.",
		}, []string{"field"}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last telemetry snapshot change.",
		}),
	}

	counter := func(name, help string, value func(telemetry.Stats) uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(value(src.Stats()))
		})
	}

	c.registry.MustRegister(
		c.connectionState,
		c.decodeErrors,
		c.readingValue,
		c.lastUpdate,
		counter("connect_attempts_total", "Broker connection attempts started.",
			func(s telemetry.Stats) uint64 { return s.ConnectAttempts }),
		counter("connections_total", "Broker connections established.",
			func(s telemetry.Stats) uint64 { return s.Connections }),
		counter("readings_total", "Sensor readings accepted.",
			func(s telemetry.Stats) uint64 { return s.Readings }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, kind := range []reading.Kind{reading.KindMalformed, reading.KindMissingField, reading.KindInvalidValue} {
		c.decodeErrors.WithLabelValues(string(kind))
	}

	c.observe(src.Snapshot())
	c.unregister = append(c.unregister,
		src.OnChange(c.observe),
		src.OnDecodeError(c.observeDecodeError),
	)

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Close stops following the source. Registered series keep their last values.
func (c *Collector) Close() {
	for _, fn := range c.unregister {
		fn()
	}
	c.unregister = nil
}

func (c *Collector) observe(s telemetry.Snapshot) {
	for _, state := range telemetry.States {
		v := 0.0
		if state == s.State {
			v = 1
		}
		c.connectionState.WithLabelValues(string(state)).Set(v)
	}

	if r, ok := s.Latest(); ok {
		for _, field := range reading.Fields {
			v, _ := r.Value(field)
			c.readingValue.WithLabelValues(field).Set(v)
		}
	} else {
		c.readingValue.Reset()
	}

	if !s.UpdatedAt.IsZero() {
		c.lastUpdate.Set(float64(s.UpdatedAt.UnixNano()) / 1e9)
	}
}

func (c *Collector) observeDecodeError(_ string, _ []byte, err error) {
	kind := kindUnknown
	var de *reading.DecodeError
	if errors.As(err, &de) {
		kind = string(de.Kind)
	}
	c.decodeErrors.WithLabelValues(kind).Inc()
}
