package session

import (
	"bytes"
	"encoding/json"
	"math"
)

// Field is an optional input value that keeps "not sent", "sent as null"
// and "sent with a value" apart. Decoding is lenient: a value of the wrong
// JSON type is kept as null instead of failing the whole request.
type Field[T any] struct {
	value T
	set   bool
	valid bool
}

// Value returns a Field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{value: v, set: true, valid: true}
}

// Null returns a Field that was sent as null.
func Null[T any]() Field[T] {
	return Field[T]{set: true}
}

// IsSet reports whether the field was present in the input at all.
func (f Field[T]) IsSet() bool { return f.set }

// IsZero reports whether the field was absent, so `omitzero` drops it.
func (f Field[T]) IsZero() bool { return !f.set }

// Get returns the value and whether there is one.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set && f.valid
}

func (f Field[T]) Ptr() *T {
	if !f.set || !f.valid {
		return nil
	}
	v := f.value
	return &v
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	*f = Field[T]{set: true}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err == nil {
		f.value, f.valid = v, true
		return nil
	}

	// Browsers report integers such as rtt or page timings as floats.
	if p, ok := any(&f.value).(*int64); ok {
		var n float64
		if err := json.Unmarshal(data, &n); err == nil {
			// Out of int64 range stays null. NaN and Inf fail both bounds.
			if r := math.Round(n); r >= -(1<<63) && r < 1<<63 {
				*p, f.valid = int64(r), true
			}
		}
	}
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set || !f.valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
