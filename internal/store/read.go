package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eternalApril/redisdrs/internal/record"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Read fetches the type, TTL and value of key as one consistent record.
// The key is watched while its type is probed and the value is read inside
// MULTI/EXEC. If the key changes meanwhile its type is probed again: a
// different type fails with ErrTypeChanged, the same type retries the read.
func (c *Client) Read(ctx context.Context, key string) (record.Record, error) {
	attempts := max(c.opts.ReadRetries, 0) + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		var (
			rec    record.Record
			probed string
		)
		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			var err error
			rec, err = c.readTx(ctx, tx, key, &probed)
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			current, terr := c.rdb.Type(ctx, key).Result()
			if terr != nil {
				return record.Record{}, classify(terr)
			}
			if current == "none" {
				return record.Record{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
			}
			if current != probed {
				return record.Record{}, fmt.Errorf("%w: %q from %s to %s", ErrTypeChanged, key, probed, current)
			}
			if c.logger.Core().Enabled(zap.DebugLevel) {
				c.logger.Debug("key changed during read, retrying",
					zap.String("key", key),
					zap.Int("attempt", attempt),
				)
			}
			continue
		}
		if errors.Is(err, redis.Nil) {
			return record.Record{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
		}
		if err != nil {
			return record.Record{}, classify(err)
		}
		return rec, nil
	}

	return record.Record{}, fmt.Errorf("%w: %q changed during %d attempts", ErrConflict, key, attempts)
}

// readTx reads key inside the watch; the probed type is stored in probedOut
func (c *Client) readTx(ctx context.Context, tx *redis.Tx, key string, probedOut *string) (record.Record, error) {
	probed, err := tx.Type(ctx, key).Result()
	if err != nil {
		return record.Record{}, err
	}
	*probedOut = probed
	if probed == "none" {
		return record.Record{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	kind, err := record.ParseKind(probed)
	if err != nil {
		return record.Record{}, fmt.Errorf("key %q: %w", key, err)
	}

	var (
		typeCmd  *redis.StatusCmd
		ttlCmd   *redis.DurationCmd
		valueCmd redis.Cmder
	)

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		typeCmd = pipe.Type(ctx, key)
		if c.precise {
			ttlCmd = pipe.PTTL(ctx, key)
		} else {
			ttlCmd = pipe.TTL(ctx, key)
		}

		switch kind {
		case record.KindString:
			valueCmd = pipe.Get(ctx, key)
		case record.KindList:
			valueCmd = pipe.LRange(ctx, key, 0, -1)
		case record.KindSet:
			valueCmd = pipe.SMembers(ctx, key)
		case record.KindZSet:
			valueCmd = pipe.ZRangeWithScores(ctx, key, 0, -1)
		case record.KindHash:
			valueCmd = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return record.Record{}, err
	}

	if observed := typeCmd.Val(); observed != probed {
		return record.Record{}, fmt.Errorf("%w: %q from %s to %s", ErrTypeChanged, key, probed, observed)
	}

	value, err := valueOf(kind, valueCmd)
	if err != nil {
		return record.Record{}, fmt.Errorf("key %q: %w", key, err)
	}

	return record.New(key, value, record.ExpiryFromTTL(ttlSeconds(ttlCmd.Val()), c.now()))
}

func valueOf(kind record.Kind, cmd redis.Cmder) (record.Value, error) {
	switch kind {
	case record.KindString:
		return record.Scalar(cmd.(*redis.StringCmd).Val()), nil
	case record.KindList:
		return record.Sequence(cmd.(*redis.StringSliceCmd).Val()), nil
	case record.KindSet:
		return record.UnorderedSet(cmd.(*redis.StringSliceCmd).Val()), nil
	case record.KindZSet:
		zs := cmd.(*redis.ZSliceCmd).Val()
		scored := make(record.ScoredSequence, len(zs))
		for i, z := range zs {
			scored[i] = record.Scored{Member: fmt.Sprint(z.Member), Score: z.Score}
		}
		return scored, nil
	case record.KindHash:
		return record.Mapping(cmd.(*redis.MapStringStringCmd).Val()), nil
	}
	return nil, fmt.Errorf("%w: %s", record.ErrUnknownType, kind)
}

// ttlSeconds converts a TTL/PTTL reply to seconds, -1 when the key does not expire
func ttlSeconds(d time.Duration) float64 {
	if d <= 0 {
		return -1
	}
	return float64(d.Milliseconds()) / 1000
}
