package reading

import (
	"errors"
	"fmt"
)

// Sentinel errors for decode failures.
// Use errors.Is() to classify an error returned by Decode.
var (
	// ErrMalformed is returned when the payload is not a JSON object.
	ErrMalformed = errors.New("reading: malformed payload")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("reading: missing field")

	// ErrInvalidValue is returned when a field is present but is not a finite number.
	ErrInvalidValue = errors.New("reading: invalid value")
)

// Kind classifies a DecodeError.
type Kind string

const (
	KindMalformed    Kind = "malformed"
	KindMissingField Kind = "missing_field"
	KindInvalidValue Kind = "invalid_value"
)

// DecodeError describes why a payload was rejected.
// Field is empty for KindMalformed.
type DecodeError struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	var msg string
	switch e.Kind {
	case KindMissingField:
		msg = fmt.Sprintf("%v %q", ErrMissingField, e.Field)
	case KindInvalidValue:
		msg = fmt.Sprintf("%v for %q", ErrInvalidValue, e.Field)
	default:
		msg = ErrMalformed.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying parse error, if any.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *DecodeError) Is(target error) bool {
	switch e.Kind {
	case KindMalformed:
		return target == ErrMalformed
	case KindMissingField:
		return target == ErrMissingField
	case KindInvalidValue:
		return target == ErrInvalidValue
	}
	return false
}

func malformed(err error) *DecodeError {
	return &DecodeError{Kind: KindMalformed, Err: err}
}

func missingField(name string) *DecodeError {
	return &DecodeError{Kind: KindMissingField, Field: name}
}

func invalidValue(name string, err error) *DecodeError {
	return &DecodeError{Kind: KindInvalidValue, Field: name, Err: err}
}
