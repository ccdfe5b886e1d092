package tracker

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Optional is a JSON field that tells apart a missing value, an explicit
// null and a set value. Use it with the omitzero tag option.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an Optional that encodes as JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o Optional[T]) IsZero() bool { return !o.Set }

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(b, &o.Value)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps (fractional seconds optional) and
// bare calendar dates. Values without a zone are taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp(t), true
		}
	}
	return time.Time{}, false
}

// wireTime is the JSON form of every timestamp, always with three
// fractional digits.
const wireTime = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(wireTime)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// Timestamp normalizes t to the precision the stores keep.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func trimmed(o Optional[string]) string {
	return strings.TrimSpace(o.Value)
}

// requiredString applies o to dst, recording an error when the result is empty.
func requiredString(errs fieldErrors, name string, o Optional[string], dst *string, creating bool) {
	if !o.Set {
		if creating || strings.TrimSpace(*dst) == "" {
			errs.add(name, "is required")
		}
		return
	}
	v := trimmed(o)
	if o.Null || v == "" {
		errs.add(name, "is required")
		return
	}
	*dst = v
}

// optionalString applies o to dst; null and blank both clear the field.
func optionalString(o Optional[string], dst *string) {
	if !o.Set {
		return
	}
	*dst = trimmed(o)
}

func requiredDate(errs fieldErrors, name string, o Optional[string], dst *time.Time, creating bool) {
	if !o.Set {
		if creating || dst.IsZero() {
			errs.add(name, "is required")
		}
		return
	}
	if o.Null || trimmed(o) == "" {
		errs.add(name, "is required")
		return
	}
	t, ok := ParseDate(o.Value)
	if !ok {
		errs.add(name, "must be a date")
		return
	}
	*dst = t
}

// optionalDate applies o to dst; null and blank clear the date.
func optionalDate(errs fieldErrors, name string, o Optional[string], dst **time.Time) {
	if !o.Set {
		return
	}
	if o.Null || trimmed(o) == "" {
		*dst = nil
		return
	}
	t, ok := ParseDate(o.Value)
	if !ok {
		errs.add(name, "must be a date")
		return
	}
	*dst = &t
}
