package store

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is fixed width so that string order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a UTC instant stored as sortable text.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

func Now() Timestamp {
	return NewTimestamp(time.Now())
}

func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return NewTimestamp(t), nil
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.String(), nil
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Timestamp{}
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case time.Time:
		*t = NewTimestamp(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (t *Timestamp) parse(s string) error {
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	return t.parse(s)
}
