package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/eternalApril/redisdrs/internal/record"
)

// LineEnding terminates every record in a dump file
const LineEnding = "\r\n"

var ErrMalformedLine = errors.New("malformed line")

// ErrNotUTF8 is returned by Encode for keys or values holding binary data,
// which a JSON line cannot carry unchanged
var ErrNotUTF8 = fmt.Errorf("%w: not valid utf-8", ErrMalformedLine)

// expireAt values above this are epoch milliseconds written by older dumps
const millisecondExpireAt = 1e11

// line is the on-disk shape of a record
type line struct {
	Key      string          `json:"key"`
	Type     string          `json:"type"`
	TTL      *float64        `json:"ttl,omitempty"`
	ExpireAt *float64        `json:"expireAt,omitempty"`
	Value    json.RawMessage `json:"value"`
}

// Encode serializes a record to a single JSON line without the line ending
func Encode(r record.Record) ([]byte, error) {
	if err := checkUTF8(r); err != nil {
		return nil, err
	}

	value, err := json.Marshal(r.Value())
	if err != nil {
		return nil, fmt.Errorf("encode value of %q: %w", r.Key(), err)
	}
	if string(value) == "null" {
		// nil collections are written as empty ones so the line stays decodable
		value = json.RawMessage("[]")
		if r.Kind() == record.KindHash {
			value = json.RawMessage("{}")
		}
	}

	exp := r.Expiry()
	return json.Marshal(line{
		Key:      r.Key(),
		Type:     r.Kind().String(),
		TTL:      &exp.TTL,
		ExpireAt: &exp.ExpireAt,
		Value:    value,
	})
}

// Decode parses one dump line into a record
func Decode(data []byte) (record.Record, error) {
	var l line
	if err := json.Unmarshal(data, &l); err != nil {
		return record.Record{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}

	kind, err := record.ParseKind(l.Type)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}

	if len(l.Value) == 0 || string(l.Value) == "null" {
		return record.Record{}, fmt.Errorf("%w: key %q has no value", ErrMalformedLine, l.Key)
	}

	value, err := decodeValue(kind, l.Value)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: value of %q is not a %s: %w", ErrMalformedLine, l.Key, kind, err)
	}

	exp := record.NoExpiry()
	if l.TTL != nil {
		exp.TTL = *l.TTL
	}
	if l.ExpireAt != nil {
		exp.ExpireAt = *l.ExpireAt
		if exp.ExpireAt > millisecondExpireAt {
			exp.ExpireAt /= 1000
		}
	}

	r, err := record.New(l.Key, value, exp)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}
	return r, nil
}

func checkUTF8(r record.Record) error {
	if !utf8.ValidString(r.Key()) {
		return fmt.Errorf("%w: key %q", ErrNotUTF8, r.Key())
	}

	var bad string
	valid := func(s string) bool {
		if utf8.ValidString(s) {
			return true
		}
		bad = s
		return false
	}

	ok := true
	switch v := r.Value().(type) {
	case record.Scalar:
		ok = valid(string(v))
	case record.Sequence:
		for i := 0; ok && i < len(v); i++ {
			ok = valid(v[i])
		}
	case record.UnorderedSet:
		for i := 0; ok && i < len(v); i++ {
			ok = valid(v[i])
		}
	case record.ScoredSequence:
		for i := 0; ok && i < len(v); i++ {
			ok = valid(v[i].Member)
		}
	case record.Mapping:
		for field, val := range v {
			if ok = valid(field) && valid(val); !ok {
				break
			}
		}
	}
	if !ok {
		return fmt.Errorf("%w: value of %q holds %q", ErrNotUTF8, r.Key(), bad)
	}
	return nil
}

func decodeValue(kind record.Kind, raw json.RawMessage) (record.Value, error) {
	switch kind {
	case record.KindString:
		var v string
		err := json.Unmarshal(raw, &v)
		return record.Scalar(v), err

	case record.KindList:
		var v []string
		err := json.Unmarshal(raw, &v)
		return record.Sequence(v), err

	case record.KindSet:
		var v []string
		err := json.Unmarshal(raw, &v)
		return record.UnorderedSet(v), err

	case record.KindZSet:
		var v []record.Scored
		if err := json.Unmarshal(raw, &v); err == nil {
			return record.ScoredSequence(v), nil
		}

		// older dumps stored sorted sets as a plain member list ranked by position
		var members []string
		if err := json.Unmarshal(raw, &members); err != nil {
			return nil, err
		}
		scored := make(record.ScoredSequence, len(members))
		for i, m := range members {
			scored[i] = record.Scored{Member: m, Score: float64(i)}
		}
		return scored, nil

	case record.KindHash:
		var v map[string]string
		err := json.Unmarshal(raw, &v)
		return record.Mapping(v), err
	}

	return nil, fmt.Errorf("%w: %s", record.ErrUnknownType, kind)
}
