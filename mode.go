package vcr

import (
	"fmt"
	"strings"
)

// Mode controls how a Replayer uses its cassette.
type Mode int

// Possible values:
const (
	// Cache serves recorded responses in order and falls through to the
	// network on a miss, recording the result. This is the default.
	Cache Mode = iota

	// Playback only serves recorded responses. A miss returns
	// NoInteractionError without touching the network.
	Playback

	// Record always uses the network and records every interaction,
	// replacing the cassette on flush.
	Record
)

// ParseMode parses "cache", "playback" or "record", ignoring case. The empty
// string yields Cache.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cache":
		return Cache, nil
	case "playback":
		return Playback, nil
	case "record":
		return Record, nil
	}
	return Cache, fmt.Errorf("vcr: unknown mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case Cache:
		return "cache"
	case Playback:
		return "playback"
	case Record:
		return "record"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return m.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler.
func (m Mode) MarshalYAML() (interface{}, error) { return m.String(), nil }
