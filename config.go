package vcr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Environment variables read by Config.ApplyEnv.
const (
	EnvMode       = "VCR_MODE"
	EnvFixtureDir = "VCR_FIXTURE_DIR"
)

// Config describes how test sessions find and use their cassettes.
type Config struct {
	// Mode for every session created from this config.
	Mode Mode `yaml:"mode"`

	// FixtureDir holds one <session>.json cassette per session.
	FixtureDir string `yaml:"fixture_dir"`

	// Header names removed from recordings.
	RemoveRequestHeaders  []string `yaml:"remove_request_headers,omitempty"`
	RemoveResponseHeaders []string `yaml:"remove_response_headers,omitempty"`
}

// DefaultConfig returns Cache mode with fixtures under testdata/fixtures and
// the Authorization request header removed from recordings.
func DefaultConfig() Config {
	return Config{
		Mode:                 Cache,
		FixtureDir:           filepath.Join("testdata", "fixtures"),
		RemoveRequestHeaders: []string{"Authorization"},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig. A missing
// file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("vcr: read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("vcr: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with
// lookup, typically os.LookupEnv. Unset and empty variables are ignored.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvMode); ok && v != "" {
		m, err := ParseMode(v)
		if err != nil {
			return c, fmt.Errorf("vcr: %s: %w", EnvMode, err)
		}
		c.Mode = m
	}
	if v, ok := lookup(EnvFixtureDir); ok && v != "" {
		c.FixtureDir = v
	}
	return c, nil
}

// CassettePath returns the cassette file for a session name. Session names
// may contain slashes to group cassettes in subdirectories.
func (c Config) CassettePath(session string) string {
	return filepath.Join(c.FixtureDir, filepath.FromSlash(session)+".json")
}

// Filters returns the recording filters described by c.
func (c Config) Filters() []Filter {
	var filters []Filter
	for _, h := range c.RemoveRequestHeaders {
		filters = append(filters, RemoveRequestHeader(h))
	}
	for _, h := range c.RemoveResponseHeaders {
		filters = append(filters, RemoveResponseHeader(h))
	}
	return filters
}

// NewReplayer returns a Replayer for session that falls back to live.
func (c Config) NewReplayer(session string, live Sender) *Replayer {
	return NewReplayer(c.CassettePath(session), c.Mode, live, c.Filters()...)
}
