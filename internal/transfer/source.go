package transfer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/eternalApril/redisdrs/internal/codec"
	"github.com/eternalApril/redisdrs/internal/record"
	"github.com/eternalApril/redisdrs/internal/store"
)

// Unit is one piece of work: a key for store sources, a dump line for file sources
type Unit struct {
	Index int // 1-based enumeration order, or line number
	Key   string
	Line  string
}

func (u Unit) String() string {
	if u.Key != "" {
		return u.Key
	}
	return "line " + strconv.Itoa(u.Index)
}

// Source produces the records of a run
type Source interface {
	// Prepare counts the units. It runs before any unit is emitted.
	Prepare(ctx context.Context) (int, error)
	// Units calls emit for every unit in order. emit may block; its error stops the iteration.
	Units(ctx context.Context, emit func(Unit) error) error
	// Fetch turns a unit into a record
	Fetch(ctx context.Context, u Unit) (record.Record, error)
	Close() error
}

// KeyReader is the read side of a store
type KeyReader interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
	Read(ctx context.Context, key string) (record.Record, error)
	Close() error
}

type storeSource struct {
	reader  KeyReader
	pattern string
	keys    []string
}

func newStoreSource(reader KeyReader, pattern string) *storeSource {
	return &storeSource{reader: reader, pattern: pattern}
}

func (s *storeSource) Prepare(ctx context.Context) (int, error) {
	keys, err := s.reader.Keys(ctx, s.pattern)
	if err != nil {
		return 0, sourceErr(err)
	}
	s.keys = keys
	return len(keys), nil
}

func (s *storeSource) Units(ctx context.Context, emit func(Unit) error) error {
	for i, key := range s.keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(Unit{Index: i + 1, Key: key}); err != nil {
			return err
		}
	}
	return nil
}

func (s *storeSource) Fetch(ctx context.Context, u Unit) (record.Record, error) {
	r, err := s.reader.Read(ctx, u.Key)
	if err != nil {
		return record.Record{}, sourceErr(err)
	}
	return r, nil
}

func (s *storeSource) Close() error {
	return s.reader.Close()
}

// sourceErr promotes connection failures to ErrSourceIO, the rest stays per-item
func sourceErr(err error) error {
	if errors.Is(err, store.ErrConnection) {
		return fmt.Errorf("%w: %w", ErrSourceIO, err)
	}
	return err
}

type fileSource struct {
	reader *codec.LineReader
}

func newFileSource(reader *codec.LineReader) *fileSource {
	return &fileSource{reader: reader}
}

func (s *fileSource) Prepare(_ context.Context) (int, error) {
	n, err := s.reader.Count()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSourceIO, err)
	}
	return n, nil
}

func (s *fileSource) Units(ctx context.Context, emit func(Unit) error) error {
	var emitErr error
	err := s.reader.ReadLines(ctx, func(index int, line string) error {
		emitErr = emit(Unit{Index: index, Line: line})
		return emitErr
	})
	if err == nil || emitErr != nil || isCancel(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSourceIO, err)
}

func (s *fileSource) Fetch(_ context.Context, u Unit) (record.Record, error) {
	r, err := codec.Decode([]byte(u.Line))
	if err != nil {
		return record.Record{}, fmt.Errorf("line %d: %w", u.Index, err)
	}
	return r, nil
}

func (s *fileSource) Close() error {
	return nil
}
