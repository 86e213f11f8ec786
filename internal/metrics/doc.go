// Package metrics exports telemetry client state in Prometheus format.
//
// A Collector owns a private registry so tests and embedders never collide
// with the global default. It follows a telemetry source through its
// OnChange and OnDecodeError hooks and reads counters from Stats at scrape
// time.
//
// Exported series:
//
//	soilwatch_connection_state{state}           1 for the current link state, else 0
//	soilwatch_connect_attempts_total            dials started
//	soilwatch_connections_total                 dials that reached connected
//	soilwatch_readings_total                    messages accepted
//	soilwatch_decode_errors_total{kind}         messages dropped, by decode error kind
//	soilwatch_reading{field}                    latest reading value per field
//	soilwatch_last_update_timestamp_seconds     time of the last snapshot commit
//
// Usage:
//
//	collector := metrics.New(client)
//	defer collector.Close()
//	router.Handle("/metrics", collector.Handler())
package metrics
