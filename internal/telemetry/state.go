package telemetry

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/soilwatch/internal/reading"
)

// ConnectionState is the link state of a Client.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// States lists every ConnectionState.
var States = []ConnectionState{StateDisconnected, StateConnecting, StateConnected, StateReconnecting}

// Snapshot is the externally visible telemetry state.
// It is an immutable value; each commit replaces it as a whole.
type Snapshot struct {
	Reading    reading.SensorReading
	HasReading bool
	State      ConnectionState
	UpdatedAt  time.Time
}

// Latest returns the last good reading, if any.
func (s Snapshot) Latest() (reading.SensorReading, bool) {
	return s.Reading, s.HasReading
}

// Stale reports whether a held-over reading is visible while the link is not up.
func (s Snapshot) Stale() bool {
	return s.HasReading && s.State != StateConnected
}

// snapshotJSON is the wire form of a Snapshot.
type snapshotJSON struct {
	Reading   *reading.SensorReading `json:"reading"`
	State     ConnectionState        `json:"state"`
	Stale     bool                   `json:"stale"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// MarshalJSON renders an absent reading as null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := snapshotJSON{
		State:     s.State,
		Stale:     s.Stale(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
	if s.HasReading {
		r := s.Reading
		w.Reading = &r
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the form produced by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w snapshotJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Snapshot{State: w.State, UpdatedAt: w.UpdatedAt}
	if w.Reading != nil {
		s.Reading = *w.Reading
		s.HasReading = true
	}
	return nil
}

// Stats reports counters for a Client since construction.
type Stats struct {
	ClientID        string          `json:"client_id"`
	State           ConnectionState `json:"state"`
	ConnectAttempts uint64          `json:"connect_attempts"`
	Connections     uint64          `json:"connections"`
	Readings        uint64          `json:"readings"`
	DecodeErrors    uint64          `json:"decode_errors"`
	LastError       string          `json:"last_error,omitempty"`
}
