package record

import (
	"errors"
	"fmt"
)

// ErrUnknownType is returned for store types the transfer engine cannot represent
var ErrUnknownType = errors.New("unknown type")

// Kind is the store-side type of a record value
type Kind byte

const (
	KindString Kind = iota + 1
	KindList
	KindSet
	KindZSet
	KindHash
)

// kindNames holds the names reported by the TYPE command
var kindNames = map[Kind]string{
	KindString: "string",
	KindList:   "list",
	KindSet:    "set",
	KindZSet:   "zset",
	KindHash:   "hash",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// ParseKind maps a TYPE reply to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "list":
		return KindList, nil
	case "set":
		return KindSet, nil
	case "zset":
		return KindZSet, nil
	case "hash":
		return KindHash, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}
