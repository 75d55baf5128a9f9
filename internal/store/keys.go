package store

import (
	"context"
	"slices"
)

// Keys lists the keys matching a glob pattern, sorted and without duplicates.
//
// With the scan strategy the listing is incremental: keys created or deleted
// while it runs may or may not be part of the result.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	if c.opts.Enumeration == EnumerateKeys {
		keys, err := c.rdb.Keys(ctx, pattern).Result()
		if err != nil {
			return nil, classify(err)
		}
		slices.Sort(keys)
		return slices.Compact(keys), nil
	}

	seen := make(map[string]struct{})
	iter := c.rdb.Scan(ctx, 0, pattern, c.opts.ScanCount).Iterator()
	for iter.Next(ctx) {
		seen[iter.Val()] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
