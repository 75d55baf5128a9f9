package config

import "time"

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Transfer: TransferConfig{
			BulkSize:    1000,
			Pattern:     "*",
			UseTTL:      true,
			ReadRetries: 3,
			EventBuffer: 1024,
			Enumeration: "scan",
			ScanCount:   1000,
		},
		Dump: DumpConfig{
			Fsync:     "everysec",
			QueueSize: 4096,
		},
		Capability: CapabilityConfig{
			PTTLMinVersion: "2.6.0",
			FallbackPTTL:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
