package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent recall configuration stored as config.toml
// in the .recall/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Storage  StorageConfig  `toml:"storage"`
	API      APIConfig      `toml:"api"`
	Autosave AutosaveConfig `toml:"autosave"`
	Events   EventsConfig   `toml:"events"`
	Stream   StreamConfig   `toml:"stream"`
}

// StorageConfig holds snapshot store settings.
type StorageConfig struct {
	// Provider selects the snapshot backend: "file", "sqlite", or "inmemory".
	Provider string `toml:"provider,omitempty"`

	// Path is the directory holding the snapshot file, its backups, and the
	// audit log. Empty means the resolved .recall/ directory.
	Path string `toml:"path,omitempty"`

	// SQLitePath is the database path used when Provider is "sqlite".
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// AutosaveConfig holds reconciliation loop settings.
type AutosaveConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds uint `toml:"interval_seconds,omitempty"`
}

// EventsConfig holds event timeline settings.
type EventsConfig struct {
	// Cap bounds the per-user event timeline; oldest entries are dropped first.
	Cap uint `toml:"cap,omitempty"`
}

// StreamConfig holds mutation event stream settings.
type StreamConfig struct {
	// Provider selects the publisher backend: "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.path": {
		get: func(c *Config) string { return c.Storage.Path },
		set: func(c *Config, v string) error { c.Storage.Path = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"autosave.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Autosave.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for autosave.enabled: %w", err)
			}
			c.Autosave.Enabled = b
			return nil
		},
	},
	"autosave.interval_seconds": {
		get: func(c *Config) string {
			if c.Autosave.IntervalSeconds == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Autosave.IntervalSeconds), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for autosave.interval_seconds: %w", err)
			}
			c.Autosave.IntervalSeconds = uint(n)
			return nil
		},
	},
	"events.cap": {
		get: func(c *Config) string {
			if c.Events.Cap == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Events.Cap), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for events.cap: %w", err)
			}
			c.Events.Cap = uint(n)
			return nil
		},
	},
	"stream.provider": {
		get: func(c *Config) string { return c.Stream.Provider },
		set: func(c *Config, v string) error { c.Stream.Provider = v; return nil },
	},
	"stream.brokers": {
		get: func(c *Config) string { return c.Stream.Brokers },
		set: func(c *Config, v string) error { c.Stream.Brokers = v; return nil },
	},
	"stream.topic": {
		get: func(c *Config) string { return c.Stream.Topic },
		set: func(c *Config, v string) error { c.Stream.Topic = v; return nil },
	},
}
