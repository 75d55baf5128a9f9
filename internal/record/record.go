package record

import (
	"errors"
	"math"
	"time"
)

var (
	ErrEmptyKey = errors.New("empty key")
	ErrNilValue = errors.New("nil value")
)

// Expiry holds the expiration metadata of a record.
// Both fields are -1 when the key does not expire.
type Expiry struct {
	TTL      float64 // remaining seconds at read time
	ExpireAt float64 // unix seconds
}

// NoExpiry returns the expiry of a persistent key
func NoExpiry() Expiry {
	return Expiry{TTL: -1, ExpireAt: -1}
}

// ExpiryFromTTL builds an Expiry from a remaining TTL observed at now
func ExpiryFromTTL(ttl float64, now time.Time) Expiry {
	if ttl <= 0 {
		return NoExpiry()
	}
	return Expiry{
		TTL:      ttl,
		ExpireAt: float64(now.UnixMilli())/1000 + ttl,
	}
}

// Expires reports whether the record carries a TTL
func (e Expiry) Expires() bool {
	return e.TTL > 0
}

// IsWhole reports whether x has no fractional part
func IsWhole(x float64) bool {
	return x == math.Trunc(x)
}

// Record is one transferable key. It is immutable once built.
type Record struct {
	key    string
	value  Value
	expiry Expiry
}

// New validates the parts and builds a Record. The kind is derived from the value.
func New(key string, value Value, expiry Expiry) (Record, error) {
	if key == "" {
		return Record{}, ErrEmptyKey
	}
	if value == nil {
		return Record{}, ErrNilValue
	}
	if expiry.TTL <= 0 {
		expiry = NoExpiry()
	}
	return Record{key: key, value: value, expiry: expiry}, nil
}

func (r Record) Key() string    { return r.key }
func (r Record) Kind() Kind     { return r.value.Kind() }
func (r Record) Value() Value   { return r.value }
func (r Record) Expiry() Expiry { return r.expiry }
