package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

var errNoVersion = errors.New("redis_version missing from INFO")

// Probe asks the server for its version and decides between TTL and PTTL.
// Servers that do not answer INFO keep the configured fallback.
func (c *Client) Probe(ctx context.Context) error {
	info, err := c.rdb.Info(ctx, "server").Result()
	if err != nil {
		if err = classify(err); errors.Is(err, ErrConnection) {
			return err
		}
		c.logger.Warn("cannot read server info, using fallback ttl precision",
			zap.Bool("pttl", c.precise),
			zap.Error(err),
		)
		return nil
	}

	version, err := parseVersion(info)
	if err != nil {
		c.logger.Warn("cannot parse server version, using fallback ttl precision",
			zap.Bool("pttl", c.precise),
			zap.Error(err),
		)
		return nil
	}

	c.version = version.Original()
	c.precise = !version.LessThan(c.minVersion)

	c.logger.Info("store version",
		zap.String("version", c.version),
		zap.Bool("pttl", c.precise),
	)
	return nil
}

// parseVersion extracts redis_version from an INFO reply
func parseVersion(info string) (*semver.Version, error) {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		value, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "redis_version:")
		if !ok {
			continue
		}
		v, err := semver.NewVersion(value)
		if err != nil {
			return nil, fmt.Errorf("redis_version %q: %w", value, err)
		}
		return v, nil
	}
	return nil, errNoVersion
}
