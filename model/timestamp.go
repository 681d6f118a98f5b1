package model

import (
	"errors"
	"time"
)

// ErrTimestampNotUTC is returned when a Timestamp is constructed from a
// time.Time not tagged UTC.
var ErrTimestampNotUTC = errors.New("model: timestamp must be UTC")

// Timestamp is a UTC instant with sub-second precision. Streams that
// produce timestamps are expected to be internally monotone; this type
// only enforces the UTC-tagging invariant, the monotonicity guarantee is
// the producing stream's responsibility.
type Timestamp struct {
	t time.Time
}

// NewTimestamp wraps t, rejecting anything not already UTC-located.
func NewTimestamp(t time.Time) (Timestamp, error) {
	if t.Location() != time.UTC {
		return Timestamp{}, ErrTimestampNotUTC
	}
	return Timestamp{t: t}, nil
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp {
	return Timestamp{t: time.Now().UTC()}
}

func (ts Timestamp) Time() time.Time { return ts.t }
func (ts Timestamp) IsZero() bool    { return ts.t.IsZero() }

func (ts Timestamp) Before(o Timestamp) bool { return ts.t.Before(o.t) }
func (ts Timestamp) After(o Timestamp) bool  { return ts.t.After(o.t) }
func (ts Timestamp) Equal(o Timestamp) bool  { return ts.t.Equal(o.t) }

// Sub returns the duration between two timestamps (ts - o).
func (ts Timestamp) Sub(o Timestamp) time.Duration { return ts.t.Sub(o.t) }

// Add returns ts shifted by d.
func (ts Timestamp) Add(d time.Duration) Timestamp { return Timestamp{t: ts.t.Add(d)} }

func (ts Timestamp) String() string { return ts.t.Format(time.RFC3339Nano) }
