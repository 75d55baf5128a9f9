package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EnumerateScan = "scan"
	EnumerateKeys = "keys"
)

// Options configures a Client
type Options struct {
	URI          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ReadRetries int    // extra attempts when a watched key changes during Read
	Enumeration string // scan or keys
	ScanCount   int64

	PTTLMinVersion string // first server version with millisecond TTLs
	FallbackPTTL   bool   // precision used when the version cannot be determined
}

// Client reads and writes whole records on a single Redis database.
// It is safe for concurrent use.
type Client struct {
	rdb        *redis.Client
	opts       Options
	minVersion *semver.Version
	precise    bool   // PTTL available
	version    string // as reported by INFO
	logger     *zap.Logger
	now        func() time.Time
}

// Open connects to the store at opts.URI, checks it is reachable and probes its capabilities
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	ro, err := redis.ParseURL(opts.URI)
	if err != nil {
		return nil, fmt.Errorf("parse store uri: %w", err)
	}
	if opts.DialTimeout > 0 {
		ro.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		ro.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		ro.WriteTimeout = opts.WriteTimeout
	}
	if opts.PoolSize > 0 {
		ro.PoolSize = opts.PoolSize
	}

	c, err := New(redis.NewClient(ro), opts, logger)
	if err != nil {
		return nil, err
	}

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.Close() //nolint:errcheck
		return nil, classify(err)
	}

	if err := c.Probe(ctx); err != nil {
		c.Close() //nolint:errcheck
		return nil, err
	}

	return c, nil
}

// New wraps an existing go-redis client. Probe has not run yet, so the
// precision starts at opts.FallbackPTTL.
func New(rdb *redis.Client, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.PTTLMinVersion == "" {
		opts.PTTLMinVersion = "2.6.0"
	}
	minVersion, err := semver.NewVersion(opts.PTTLMinVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid pttl min version %q: %w", opts.PTTLMinVersion, err)
	}
	if opts.Enumeration == "" {
		opts.Enumeration = EnumerateScan
	}
	if opts.ScanCount <= 0 {
		opts.ScanCount = 1000
	}

	return &Client{
		rdb:        rdb,
		opts:       opts,
		minVersion: minVersion,
		precise:    opts.FallbackPTTL,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Version returns the server version found by Probe, empty if unknown
func (c *Client) Version() string {
	return c.version
}

// Precise reports whether TTLs are read with millisecond precision
func (c *Client) Precise() bool {
	return c.precise
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}
