package store

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Payload is a schema-less JSON document stored as text. The store never
// looks inside it.
type Payload []byte

func (p Payload) IsNull() bool {
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}

func (p Payload) Value() (driver.Value, error) {
	if p.IsNull() {
		return nil, nil
	}
	return string(p), nil
}

func (p *Payload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case string:
		*p = Payload(v)
	case []byte:
		*p = append(Payload(nil), v...)
	default:
		return fmt.Errorf("cannot scan %T into Payload", src)
	}
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsNull() {
		return []byte("null"), nil
	}
	if !json.Valid(p) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return p, nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*p = buf.Bytes()
	return nil
}
