package reading

import (
	"errors"
	"math"
	"testing"
)

func TestDecode_Valid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    SensorReading
	}{
		{
			name:    "sensor sample",
			payload: `{"soil_moisture":42.0,"temperature":26.5,"humidity":60.0,"rainfall":0.0}`,
			want:    SensorReading{SoilMoisture: 42, Temperature: 26.5, Humidity: 60, Rainfall: 0},
		},
		{
			name:    "integers accepted",
			payload: `{"soil_moisture":512,"temperature":-3,"humidity":100,"rainfall":12}`,
			want:    SensorReading{SoilMoisture: 512, Temperature: -3, Humidity: 100, Rainfall: 12},
		},
		{
			name:    "field order irrelevant",
			payload: `{"rainfall":1.5,"humidity":55.5,"temperature":19.25,"soil_moisture":30}`,
			want:    SensorReading{SoilMoisture: 30, Temperature: 19.25, Humidity: 55.5, Rainfall: 1.5},
		},
		{
			name:    "extra fields ignored",
			payload: `{"soil_moisture":1,"temperature":2,"humidity":3,"rainfall":4,"battery_v":3.7}`,
			want:    SensorReading{SoilMoisture: 1, Temperature: 2, Humidity: 3, Rainfall: 4},
		},
		{
			name:    "nested extra fields ignored",
			payload: `{"meta":{"fw":"1.2","tags":["a","b"]},"soil_moisture":1,"temperature":2,"humidity":3,"rainfall":4}`,
			want:    SensorReading{SoilMoisture: 1, Temperature: 2, Humidity: 3, Rainfall: 4},
		},
		{
			name:    "surrounding whitespace",
			payload: "\n  {\"soil_moisture\":1e1,\"temperature\":2,\"humidity\":3,\"rainfall\":4}\n",
			want:    SensorReading{SoilMoisture: 10, Temperature: 2, Humidity: 3, Rainfall: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecode_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantErr   error
		wantKind  Kind
		wantField string
	}{
		{"empty payload", ``, ErrMalformed, KindMalformed, ""},
		{"plain text", `hello`, ErrMalformed, KindMalformed, ""},
		{"truncated object", `{"soil_moisture":42.0,`, ErrMalformed, KindMalformed, ""},
		{"json array", `[42, 26.5, 60, 0]`, ErrMalformed, KindMalformed, ""},
		{"json number", `42`, ErrMalformed, KindMalformed, ""},
		{"json null", `null`, ErrMalformed, KindMalformed, ""},
		{"trailing data", `{"soil_moisture":1,"temperature":2,"humidity":3,"rainfall":4} {}`, ErrMalformed, KindMalformed, ""},
		{"missing soil_moisture", `{"temperature":26.5,"humidity":60.0,"rainfall":0.0}`, ErrMissingField, KindMissingField, FieldSoilMoisture},
		{"missing temperature", `{"soil_moisture":42.0,"humidity":60.0,"rainfall":0.0}`, ErrMissingField, KindMissingField, FieldTemperature},
		{"missing humidity", `{"soil_moisture":42.0,"temperature":26.5,"rainfall":0.0}`, ErrMissingField, KindMissingField, FieldHumidity},
		{"missing rainfall", `{"soil_moisture":42.0,"temperature":26.5,"humidity":60.0}`, ErrMissingField, KindMissingField, FieldRainfall},
		{"empty object", `{}`, ErrMissingField, KindMissingField, FieldSoilMoisture},
		{"string temperature", `{"soil_moisture":42.0,"temperature":"hot","humidity":60.0,"rainfall":0.0}`, ErrInvalidValue, KindInvalidValue, FieldTemperature},
		{"numeric string", `{"soil_moisture":"42","temperature":26.5,"humidity":60.0,"rainfall":0.0}`, ErrInvalidValue, KindInvalidValue, FieldSoilMoisture},
		{"null humidity", `{"soil_moisture":42.0,"temperature":26.5,"humidity":null,"rainfall":0.0}`, ErrInvalidValue, KindInvalidValue, FieldHumidity},
		{"boolean rainfall", `{"soil_moisture":42.0,"temperature":26.5,"humidity":60.0,"rainfall":true}`, ErrInvalidValue, KindInvalidValue, FieldRainfall},
		{"nested object", `{"soil_moisture":{"v":1},"temperature":26.5,"humidity":60.0,"rainfall":0.0}`, ErrInvalidValue, KindInvalidValue, FieldSoilMoisture},
		{"overflow to infinity", `{"soil_moisture":42.0,"temperature":1e999,"humidity":60.0,"rainfall":0.0}`, ErrInvalidValue, KindInvalidValue, FieldTemperature},
		{"NaN literal", `{"soil_moisture":NaN,"temperature":26.5,"humidity":60.0,"rainfall":0.0}`, ErrMalformed, KindMalformed, ""},
		{"invalid utf-8", "{\"soil_moisture\":42.0,\"temperature\":26.5,\"humidity\":60.0,\"rainfall\":0.0,\"note\":\"\xff\xfe\"}", ErrMalformed, KindMalformed, ""},
		{"duplicate field", `{"temperature":"hot","soil_moisture":42.0,"temperature":26.5,"humidity":60.0,"rainfall":0.0}`, ErrMalformed, KindMalformed, ""},
		{"duplicate extra field", `{"soil_moisture":42.0,"temperature":26.5,"humidity":60.0,"rainfall":0.0,"note":1,"note":2}`, ErrMalformed, KindMalformed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if err == nil {
				t.Fatal("Decode() expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}

			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("Decode() error type = %T, want *DecodeError", err)
			}
			if decErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", decErr.Kind, tt.wantKind)
			}
			if decErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", decErr.Field, tt.wantField)
			}
		})
	}
}

func TestDecode_FirstFailingFieldReported(t *testing.T) {
	// soil_moisture is invalid and rainfall is missing; validation order
	// reports soil_moisture.
	_, err := Decode([]byte(`{"soil_moisture":"wet","temperature":26.5,"humidity":60.0}`))

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
	if decErr.Kind != KindInvalidValue || decErr.Field != FieldSoilMoisture {
		t.Errorf("got %s/%s, want %s/%s", decErr.Kind, decErr.Field, KindInvalidValue, FieldSoilMoisture)
	}
}

func TestDecodeError_SentinelsDistinct(t *testing.T) {
	err := &DecodeError{Kind: KindMissingField, Field: FieldRainfall}

	if errors.Is(err, ErrInvalidValue) {
		t.Error("missing field error should not match ErrInvalidValue")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("missing field error should not match ErrMalformed")
	}
	if got := err.Error(); got != `reading: missing field "rainfall"` {
		t.Errorf("Error() = %q", got)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	readings := []SensorReading{
		{},
		{SoilMoisture: 42, Temperature: 26.5, Humidity: 60, Rainfall: 0},
		{SoilMoisture: 0.1, Temperature: -40.125, Humidity: 99.99, Rainfall: 250.4},
		{SoilMoisture: 1023, Temperature: 1e-9, Humidity: 0, Rainfall: math.MaxFloat64},
		{SoilMoisture: math.SmallestNonzeroFloat64, Temperature: -0.5, Humidity: 33.333333333333336, Rainfall: 7},
	}

	for _, r := range readings {
		payload, err := Encode(r)
		if err != nil {
			t.Fatalf("Encode(%+v) error = %v", r, err)
		}
		got, err := Decode(payload)
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", payload, err)
		}
		if got != r {
			t.Errorf("round trip = %+v, want %+v", got, r)
		}
	}
}

func TestEncode_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		r     SensorReading
		field string
	}{
		{"NaN soil moisture", SensorReading{SoilMoisture: math.NaN()}, FieldSoilMoisture},
		{"+Inf humidity", SensorReading{Humidity: math.Inf(1)}, FieldHumidity},
		{"-Inf rainfall", SensorReading{Rainfall: math.Inf(-1)}, FieldRainfall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.r)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("Encode() error = %v, want *DecodeError", err)
			}
			if decErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", decErr.Field, tt.field)
			}
		})
	}
}

func TestSensorReading_Value(t *testing.T) {
	r := SensorReading{SoilMoisture: 1, Temperature: 2, Humidity: 3, Rainfall: 4}

	for i, field := range Fields {
		v, ok := r.Value(field)
		if !ok {
			t.Fatalf("Value(%q) ok = false", field)
		}
		if v != float64(i+1) {
			t.Errorf("Value(%q) = %v, want %v", field, v, i+1)
		}
	}

	if _, ok := r.Value("pressure"); ok {
		t.Error("Value(pressure) ok = true, want false")
	}
}
