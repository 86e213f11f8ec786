// Package api implements the HTTP status API and WebSocket stream for SoilWatch.
//
// This package provides:
//   - REST endpoints for health, the current telemetry snapshot and counters
//   - WebSocket hub pushing every snapshot change to connected consumers
//   - Optional mounting of the Prometheus exposition handler
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server is a read-only consumer of the telemetry client. It never
// mutates client state; it reads Snapshot and Stats on request and relays
// OnChange notifications to WebSocket clients.
//
//	telemetry.Client ──OnChange──▶ Hub ──▶ WebSocket clients
//	        ▲
//	        └── Snapshot / Stats ◀── GET /api/v1/*
//
// # Graceful Degradation
//
// Health always answers 200 while the process runs. A broker outage is a
// normal, recoverable condition reported through connection_state.
package api
