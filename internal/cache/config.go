package cache

import "time"

// Config represents result cache configuration
type Config struct {
	MaxEntries int           `json:"maxEntries"`
	TTL        time.Duration `json:"ttl"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: 256,              // distinct shapes kept per session
		TTL:        10 * time.Minute, // backend values are stable for a given shape
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	merged := *c
	if merged.MaxEntries <= 0 {
		merged.MaxEntries = defaults.MaxEntries
	}
	if merged.TTL <= 0 {
		merged.TTL = defaults.TTL
	}
	return &merged
}
