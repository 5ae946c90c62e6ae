package core

import (
	"bytes"
	"encoding/json"
	"time"
)

// timestampLayout matches naive UTC ISO-8601 timestamps with optional microseconds,
// the format already present in persisted data files.
const timestampLayout = "2006-01-02T15:04:05"

// Timestamp is a UTC instant serialized without a zone offset.
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to microseconds.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Microsecond)}
}

// NowPtr is Now for optional timestamp fields.
func NowPtr() *Timestamp {
	ts := Now()
	return &ts
}

// String formats the timestamp; microseconds are omitted when zero.
func (t Timestamp) String() string {
	u := t.UTC()
	if u.Nanosecond()/1000 == 0 {
		return u.Format(timestampLayout)
	}
	return u.Format(timestampLayout + ".000000")
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp accepts naive timestamps (assumed UTC) and RFC 3339 strings.
func ParseTimestamp(s string) (Timestamp, error) {
	if parsed, err := time.Parse(timestampLayout, s); err == nil {
		return Timestamp{parsed.UTC()}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{parsed.UTC()}, nil
}
