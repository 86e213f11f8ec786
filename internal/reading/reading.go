package reading

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf8"
)

// Wire field names, in the order Decode validates them.
const (
	FieldSoilMoisture = "soil_moisture"
	FieldTemperature  = "temperature"
	FieldHumidity     = "humidity"
	FieldRainfall     = "rainfall"
)

// Fields lists the required wire fields in validation order.
var Fields = []string{FieldSoilMoisture, FieldTemperature, FieldHumidity, FieldRainfall}

// SensorReading is one validated sample from the field sensor.
// Values are treated as immutable once decoded.
type SensorReading struct {
	SoilMoisture float64 `json:"soil_moisture"`
	Temperature  float64 `json:"temperature"` // °C
	Humidity     float64 `json:"humidity"`    // %
	Rainfall     float64 `json:"rainfall"`    // mm
}

// Value returns the reading's value for a wire field name.
func (r SensorReading) Value(field string) (float64, bool) {
	switch field {
	case FieldSoilMoisture:
		return r.SoilMoisture, true
	case FieldTemperature:
		return r.Temperature, true
	case FieldHumidity:
		return r.Humidity, true
	case FieldRainfall:
		return r.Rainfall, true
	}
	return 0, false
}

// Decode parses and validates a raw broker payload.
//
// The payload must be a single valid UTF-8 JSON object containing all four
// fields as finite numbers. Extra fields are ignored; repeated keys make the
// payload ambiguous and are rejected as malformed. On failure the returned error
// is a *DecodeError; use errors.Is with ErrMalformed, ErrMissingField or
// ErrInvalidValue to classify it.
func Decode(payload []byte) (SensorReading, error) {
	fields, err := parseObject(payload)
	if err != nil {
		return SensorReading{}, err
	}

	var values [4]float64
	for i, name := range Fields {
		raw, ok := fields[name]
		if !ok {
			return SensorReading{}, missingField(name)
		}
		v, err := parseNumber(name, raw)
		if err != nil {
			return SensorReading{}, err
		}
		values[i] = v
	}

	return SensorReading{
		SoilMoisture: values[0],
		Temperature:  values[1],
		Humidity:     values[2],
		Rainfall:     values[3],
	}, nil
}

// Encode renders a reading in the wire format accepted by Decode.
func Encode(r SensorReading) ([]byte, error) {
	for _, name := range Fields {
		v, _ := r.Value(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalidValue(name, fmt.Errorf("non-finite value %v", v))
		}
	}
	return json.Marshal(r)
}

// parseObject decodes payload as exactly one JSON object, keeping numbers
// as json.Number so range errors can be reported per field.
func parseObject(payload []byte) (map[string]any, error) {
	if !utf8.Valid(payload) {
		return nil, malformed(errors.New("payload is not valid UTF-8"))
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(err)
	}
	if tok == nil {
		return nil, malformed(errors.New("payload is null"))
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, malformed(fmt.Errorf("expected object, got %v", tok))
	}

	fields := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, malformed(fmt.Errorf("expected object key, got %v", tok))
		}
		if _, dup := fields[key]; dup {
			return nil, malformed(fmt.Errorf("duplicate key %q", key))
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, malformed(err)
		}
		fields[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, malformed(err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed(errors.New("trailing data after object"))
	}
	return fields, nil
}

// parseNumber converts one field value to a finite float64.
func parseNumber(name string, raw any) (float64, error) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, invalidValue(name, fmt.Errorf("expected number, got %s", jsonKind(raw)))
	}
	v, err := strconv.ParseFloat(num.String(), 64)
	if err != nil {
		return 0, invalidValue(name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalidValue(name, fmt.Errorf("non-finite value %s", num))
	}
	return v, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
