package action

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is a raw provider record: a loosely typed key/value document as
// decoded from the provider's API response. Providers disagree on field
// names and wire types (numbers as strings, ids as integers), so all access
// goes through the coercing accessors below.
type Record map[string]any

// Has reports whether the record carries a non-nil value for key.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Str returns the value for key as a string. Numeric values are formatted,
// since providers issue numeric identifiers for some record kinds.
func (r Record) Str(key string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing field %q", ErrMalformedRecord, key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("%w: field %q has type %T, want string", ErrMalformedRecord, key, v)
	}
}

// Num returns the value for key as a float64. String-encoded numbers are
// parsed; providers serialize most amounts that way.
func (r Record) Num(key string) (float64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, key)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: field %q: %v", ErrMalformedRecord, key, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %q: %v", ErrMalformedRecord, key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: field %q has type %T, want number", ErrMalformedRecord, key, v)
	}
}

// TimeMs returns the value for key as a Unix millisecond timestamp.
// Accepts integer milliseconds or the "2006-01-02 15:04:05" string form some
// provider endpoints use.
func (r Record) TimeMs(key string) (int64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, key)
	}
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: field %q: %v", ErrMalformedRecord, key, err)
		}
		return n, nil
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, nil
		}
		ts, err := time.Parse("2006-01-02 15:04:05", t)
		if err != nil {
			return 0, fmt.Errorf("%w: field %q: unrecognized timestamp %q", ErrMalformedRecord, key, t)
		}
		return ts.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("%w: field %q has type %T, want timestamp", ErrMalformedRecord, key, v)
	}
}

// Bool returns the value for key as a bool.
func (r Record) Bool(key string) (bool, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return false, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: field %q has type %T, want bool", ErrMalformedRecord, key, v)
	}
	return b, nil
}

// OptStr returns the value for key as a string, or fallback when absent.
func (r Record) OptStr(key, fallback string) string {
	if !r.Has(key) {
		return fallback
	}
	s, err := r.Str(key)
	if err != nil {
		return fallback
	}
	return s
}

// OptNum returns the value for key as a float64, or fallback when absent.
func (r Record) OptNum(key string, fallback float64) float64 {
	if !r.Has(key) {
		return fallback
	}
	f, err := r.Num(key)
	if err != nil {
		return fallback
	}
	return f
}
