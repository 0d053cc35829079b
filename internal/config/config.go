// Package config loads engine configuration from the environment (§6),
// leaving CLI-flag precedence to the external collaborator that owns
// argument parsing.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config configures the reference checker engine. Zero value is usable: all
// optional fields are absent, and MaxConcurrentRefs/DBTimeoutSecs/
// DBTimeoutShortSecs fall back to their documented defaults in Workers,
// DBTimeout and DBTimeoutShort.
type Config struct {
	// OpenAlexKey authenticates OpenAlex requests, if set.
	OpenAlexKey string `env:"OPENALEX_KEY"`
	// S2APIKey authenticates Semantic Scholar requests, if set; its rate
	// limit then narrows from 10/s to 1/s (§4.6).
	S2APIKey string `env:"S2_API_KEY"`
	// CrossrefMailto is sent as the mailto= parameter on CrossRef requests,
	// raising its quota from 1/s to 3/s (§4.6).
	CrossrefMailto string `env:"CROSSREF_MAILTO"`
	// DBLPOfflinePath, if set, selects the offline DBLP backend (a local
	// full-text index) instead of the online HTTP API (§4.5).
	DBLPOfflinePath string `env:"DBLP_OFFLINE_PATH"`

	// MaxConcurrentRefs is the number of workers in the Validation Pool.
	// Defaults to 4 if unset (zero).
	MaxConcurrentRefs int `env:"-"`
	// DBTimeoutSecs is the first-pass per-backend query timeout. Defaults
	// to 10 if unset.
	DBTimeoutSecs uint `env:"DB_TIMEOUT"`
	// DBTimeoutShortSecs is the retry-pass per-backend query timeout.
	// Defaults to 5 if unset.
	DBTimeoutShortSecs uint `env:"DB_TIMEOUT_SHORT"`

	// DisabledDBs narrows the enabled backend set (§4.5); names must match
	// Backend.Name() exactly (e.g. "crossref", "arxiv").
	DisabledDBs map[string]struct{} `env:"-"`

	// CheckOpenAlexAuthors enables author-overlap checking for OpenAlex,
	// which otherwise always passes the author check (§6).
	CheckOpenAlexAuthors bool `env:"-"`

	// LogLevel selects the structured logger's minimum level ("debug",
	// "info", "warn", "error"). Defaults to "info" if empty.
	LogLevel string `env:"LOG_LEVEL"`
}

// FromEnv loads a Config from the process environment (§6: OPENALEX_KEY,
// S2_API_KEY, CROSSREF_MAILTO, DBLP_OFFLINE_PATH, DB_TIMEOUT,
// DB_TIMEOUT_SHORT). Fields without an env tag (MaxConcurrentRefs,
// DisabledDBs, CheckOpenAlexAuthors) are left at their zero value for the
// caller (typically a CLI flag layer) to set.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// DBTimeout returns the configured first-pass timeout, defaulting to 10s.
func (c Config) DBTimeout() time.Duration {
	if c.DBTimeoutSecs == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.DBTimeoutSecs) * time.Second
}

// DBTimeoutShort returns the configured retry-pass timeout, defaulting to 5s.
func (c Config) DBTimeoutShort() time.Duration {
	if c.DBTimeoutShortSecs == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DBTimeoutShortSecs) * time.Second
}

// Workers returns the configured pool size, defaulting to 4.
func (c Config) Workers() int {
	if c.MaxConcurrentRefs <= 0 {
		return 4
	}
	return c.MaxConcurrentRefs
}

// IsDisabled reports whether a backend name is in DisabledDBs.
func (c Config) IsDisabled(name string) bool {
	if c.DisabledDBs == nil {
		return false
	}
	_, disabled := c.DisabledDBs[name]
	return disabled
}
