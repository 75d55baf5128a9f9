package record

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"string", KindString, false},
		{"list", KindList, false},
		{"set", KindSet, false},
		{"zset", KindZSet, false},
		{"hash", KindHash, false},
		{"stream", 0, true},
		{"none", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownType) {
					t.Errorf("ParseKind(%q) error = %v, want ErrUnknownType", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKind(%q) unexpected error %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestNew_DerivesKindFromValue(t *testing.T) {
	values := map[Kind]Value{
		KindString: Scalar("v"),
		KindList:   Sequence{"a", "b"},
		KindSet:    UnorderedSet{"a"},
		KindZSet:   ScoredSequence{{Member: "a", Score: 1}},
		KindHash:   Mapping{"f": "v"},
	}

	for kind, v := range values {
		r, err := New("k", v, NoExpiry())
		require.NoError(t, err)
		assert.Equal(t, kind, r.Kind())
		assert.Equal(t, "k", r.Key())
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", Scalar("v"), NoExpiry())
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = New("k", nil, NoExpiry())
	assert.ErrorIs(t, err, ErrNilValue)
}

func TestNew_NormalizesNonPositiveTTL(t *testing.T) {
	r, err := New("k", Scalar("v"), Expiry{TTL: 0, ExpireAt: 12345})
	require.NoError(t, err)
	assert.Equal(t, NoExpiry(), r.Expiry())
	assert.False(t, r.Expiry().Expires())
}

func TestExpiryFromTTL(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_500)

	e := ExpiryFromTTL(30, now)
	assert.Equal(t, 30.0, e.TTL)
	assert.InDelta(t, 1_700_000_030.5, e.ExpireAt, 1e-6)

	assert.Equal(t, NoExpiry(), ExpiryFromTTL(-1, now))
	assert.Equal(t, NoExpiry(), ExpiryFromTTL(0, now))
}

func TestIsWhole(t *testing.T) {
	assert.True(t, IsWhole(30))
	assert.True(t, IsWhole(-1))
	assert.False(t, IsWhole(29.999))
}
