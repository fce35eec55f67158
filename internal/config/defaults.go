package config

const (
	defaultDataDir        = "~/.local/share/cbzxl"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultEffort         = 8
	defaultSizeThreshold  = 10_000_000
	defaultPixelThreshold = 5_000_000
	defaultTimeoutSeconds = 300
	defaultThreads        = 10
	defaultGCInterval     = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root:    ".",
			DataDir: defaultDataDir,
		},
		Encoder: Encoder{
			Effort:         defaultEffort,
			SizeThreshold:  defaultSizeThreshold,
			PixelThreshold: defaultPixelThreshold,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Processing: Processing{
			Threads:    defaultThreads,
			Flatten:    true,
			Convert:    true,
			GCInterval: defaultGCInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
