// Package reading decodes soil telemetry payloads into typed readings.
//
// A field sensor publishes one flat JSON object per sample:
//
//	{"soil_moisture":42.0,"temperature":26.5,"humidity":60.0,"rainfall":0.0}
//
// Decode is a pure function. It accepts a payload only when it parses as a
// JSON object and all four fields are present as finite numbers. A reading
// with a missing or unusable field is rejected as a whole; no defaults are
// substituted.
//
// # Usage
//
//	r, err := reading.Decode(payload)
//	switch {
//	case errors.Is(err, reading.ErrMissingField):
//	    // publisher sent a partial sample
//	case err != nil:
//	    // malformed or invalid value
//	}
package reading
