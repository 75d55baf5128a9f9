package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Source     EndpointConfig   `mapstructure:"source"`
	Target     EndpointConfig   `mapstructure:"target"`
	Store      StoreConfig      `mapstructure:"store"`
	Transfer   TransferConfig   `mapstructure:"transfer"`
	Dump       DumpConfig       `mapstructure:"dump"`
	Capability CapabilityConfig `mapstructure:"capability"`
	Log        LogConfig        `mapstructure:"log"`
}

// EndpointConfig locates one store
type EndpointConfig struct {
	URI string `mapstructure:"uri"` // redis://[user:pass@]host:port/db
}

// StoreConfig holds the connection settings shared by every store client
type StoreConfig struct {
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"` // 0 lets the driver decide
}

// TransferConfig defines how a run enumerates and moves records
type TransferConfig struct {
	BulkSize    int    `mapstructure:"bulk_size"` // max records in flight
	Pattern     string `mapstructure:"pattern"`
	UseTTL      bool   `mapstructure:"use_ttl"`      // relative TTL on restore instead of expireAt
	ReadRetries int    `mapstructure:"read_retries"` // extra attempts when a key changes while read
	EventBuffer int    `mapstructure:"event_buffer"`
	Enumeration string `mapstructure:"enumeration"` // scan, keys
	ScanCount   int64  `mapstructure:"scan_count"`
}

// DumpConfig defines the dump file output
type DumpConfig struct {
	Path      string `mapstructure:"path"`
	Fsync     string `mapstructure:"fsync"` // always, everysec, no
	QueueSize int    `mapstructure:"queue_size"`
}

// CapabilityConfig decides when TTLs are read with millisecond precision
type CapabilityConfig struct {
	PTTLMinVersion string `mapstructure:"pttl_min_version"`
	FallbackPTTL   bool   `mapstructure:"fallback_pttl"` // used when the server version is unknown
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Load reads the configuration from a file and overrides it with environment variables
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("redisdrs")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("REDISDRS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values a run cannot work with
func (c *Config) Validate() error {
	var errs []error

	if c.Transfer.BulkSize < 1 {
		errs = append(errs, fmt.Errorf("transfer.bulk_size must be positive, got %d", c.Transfer.BulkSize))
	}
	if c.Transfer.ReadRetries < 0 {
		errs = append(errs, fmt.Errorf("transfer.read_retries must not be negative, got %d", c.Transfer.ReadRetries))
	}
	if c.Transfer.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("transfer.event_buffer must not be negative, got %d", c.Transfer.EventBuffer))
	}
	switch c.Transfer.Enumeration {
	case "scan", "keys":
	default:
		errs = append(errs, fmt.Errorf("transfer.enumeration must be scan or keys, got %q", c.Transfer.Enumeration))
	}
	switch c.Dump.Fsync {
	case "always", "everysec", "no":
	default:
		errs = append(errs, fmt.Errorf("dump.fsync must be always, everysec or no, got %q", c.Dump.Fsync))
	}

	return errors.Join(errs...)
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults() {
	d := Default()

	// Endpoints, empty unless given, registered so env overrides reach Unmarshal
	viper.SetDefault("source.uri", "")
	viper.SetDefault("target.uri", "")
	viper.SetDefault("dump.path", "")

	// Store
	viper.SetDefault("store.dial_timeout", d.Store.DialTimeout)
	viper.SetDefault("store.read_timeout", d.Store.ReadTimeout)
	viper.SetDefault("store.write_timeout", d.Store.WriteTimeout)
	viper.SetDefault("store.pool_size", d.Store.PoolSize)

	// Transfer
	viper.SetDefault("transfer.bulk_size", d.Transfer.BulkSize)
	viper.SetDefault("transfer.pattern", d.Transfer.Pattern)
	viper.SetDefault("transfer.use_ttl", d.Transfer.UseTTL)
	viper.SetDefault("transfer.read_retries", d.Transfer.ReadRetries)
	viper.SetDefault("transfer.event_buffer", d.Transfer.EventBuffer)
	viper.SetDefault("transfer.enumeration", d.Transfer.Enumeration)
	viper.SetDefault("transfer.scan_count", d.Transfer.ScanCount)

	// Dump
	viper.SetDefault("dump.fsync", d.Dump.Fsync)
	viper.SetDefault("dump.queue_size", d.Dump.QueueSize)

	// Capability
	viper.SetDefault("capability.pttl_min_version", d.Capability.PTTLMinVersion)
	viper.SetDefault("capability.fallback_pttl", d.Capability.FallbackPTTL)

	// Logger
	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
}
