package config

const (
	defaultStorageProvider = "file"

	defaultAPIListen = ":8080"

	defaultAutosaveEnabled  = true
	defaultAutosaveInterval = 300

	defaultEventsCap = 500

	defaultStreamProvider = "nop"
	defaultStreamBrokers  = "localhost:9092"
	defaultStreamTopic    = "recall.mutations"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Autosave: AutosaveConfig{
			Enabled:         defaultAutosaveEnabled,
			IntervalSeconds: defaultAutosaveInterval,
		},
		Events: EventsConfig{
			Cap: defaultEventsCap,
		},
		Stream: StreamConfig{
			Provider: defaultStreamProvider,
			Brokers:  defaultStreamBrokers,
			Topic:    defaultStreamTopic,
		},
	}
}
