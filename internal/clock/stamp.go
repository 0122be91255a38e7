package clock

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Stamp is an instant stored as UTC milliseconds since the Unix epoch.
// Every persisted timestamp uses it, so range predicates are plain integer
// comparisons in both SQLite and Postgres.
type Stamp int64

// accepted input layouts; the ones without a zone are read as UTC
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// FromTime converts t to a Stamp.
func FromTime(t time.Time) Stamp {
	return Stamp(t.UnixMilli())
}

// Ptr returns a pointer to s, for nullable columns.
func (s Stamp) Ptr() *Stamp {
	return &s
}

// Time returns s as a UTC time.Time.
func (s Stamp) Time() time.Time {
	return time.UnixMilli(int64(s)).UTC()
}

// Add shifts s by d, truncated to milliseconds.
func (s Stamp) Add(d time.Duration) Stamp {
	return s + Stamp(d.Milliseconds())
}

// RFC3339 renders s the way the JSON API exposes it.
func (s Stamp) RFC3339() string {
	return s.Time().Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler.
func (s Stamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.RFC3339())
}

// UnmarshalJSON accepts an RFC 3339 string, a naive "YYYY-MM-DD HH:MM:SS"
// string (UTC) or a number of epoch milliseconds.
func (s *Stamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}
	if raw[0] != '"' {
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", raw, err)
		}
		*s = Stamp(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := Parse(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Parse reads a timestamp in any of the accepted layouts.
func Parse(value string) (Stamp, error) {
	value = strings.TrimSpace(value)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return FromTime(t), nil
		}
	}
	return 0, fmt.Errorf("invalid timestamp %q", value)
}
