package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/eternalApril/redisdrs/internal/record"
	"github.com/redis/go-redis/v9"
)

// writeChunk caps the number of elements sent in a single command
const writeChunk = 1000

// Write replaces key with the record in one MULTI/EXEC batch: DEL, the
// type specific writes, then the expiry. Replaying the same record leaves the
// store in the same state.
//
// With useTTL the remaining TTL is applied relative to now, otherwise the
// absolute expireAt is used.
func (c *Client) Write(ctx context.Context, r record.Record, useTTL bool) error {
	key := r.Key()

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)

		if err := writeValue(ctx, pipe, key, r.Value()); err != nil {
			return err
		}

		if exp := r.Expiry(); exp.Expires() {
			expire(ctx, pipe, key, exp, useTTL)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	if err = classify(err); errors.Is(err, ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %q: %w", ErrWriteConflict, key, err)
}

func writeValue(ctx context.Context, pipe redis.Pipeliner, key string, value record.Value) error {
	switch v := value.(type) {
	case record.Scalar:
		pipe.Set(ctx, key, string(v), 0)

	case record.Sequence:
		for _, chunk := range chunks(v) {
			pipe.RPush(ctx, key, chunk...)
		}

	case record.UnorderedSet:
		for _, chunk := range chunks(v) {
			pipe.SAdd(ctx, key, chunk...)
		}

	case record.ScoredSequence:
		for start := 0; start < len(v); start += writeChunk {
			end := min(start+writeChunk, len(v))
			members := make([]redis.Z, 0, end-start)
			for _, s := range v[start:end] {
				members = append(members, redis.Z{Score: s.Score, Member: s.Member})
			}
			pipe.ZAdd(ctx, key, members...)
		}

	case record.Mapping:
		args := make([]interface{}, 0, min(len(v), writeChunk)*2)
		for field, val := range v {
			args = append(args, field, val)
			if len(args) == writeChunk*2 {
				pipe.HSet(ctx, key, args...)
				args = args[:0:0]
			}
		}
		if len(args) > 0 {
			pipe.HSet(ctx, key, args...)
		}

	default:
		return fmt.Errorf("%w: %T", record.ErrUnknownType, value)
	}
	return nil
}

func expire(ctx context.Context, pipe redis.Pipeliner, key string, exp record.Expiry, useTTL bool) {
	if useTTL {
		if record.IsWhole(exp.TTL) {
			pipe.Expire(ctx, key, time.Duration(exp.TTL)*time.Second)
		} else {
			pipe.PExpire(ctx, key, time.Duration(math.Round(exp.TTL*1000))*time.Millisecond)
		}
		return
	}

	if exp.ExpireAt <= 0 {
		return
	}
	if record.IsWhole(exp.ExpireAt) {
		pipe.ExpireAt(ctx, key, time.Unix(int64(exp.ExpireAt), 0))
	} else {
		pipe.PExpireAt(ctx, key, time.UnixMilli(int64(math.Round(exp.ExpireAt*1000))))
	}
}

// chunks splits values into argument lists of at most writeChunk elements
func chunks(values []string) [][]interface{} {
	var out [][]interface{}
	for start := 0; start < len(values); start += writeChunk {
		end := min(start+writeChunk, len(values))
		args := make([]interface{}, 0, end-start)
		for _, v := range values[start:end] {
			args = append(args, v)
		}
		out = append(out, args)
	}
	return out
}
