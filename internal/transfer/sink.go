package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/eternalApril/redisdrs/internal/codec"
	"github.com/eternalApril/redisdrs/internal/record"
	"github.com/eternalApril/redisdrs/internal/store"
)

// Sink consumes the records of a run
type Sink interface {
	Put(ctx context.Context, r record.Record) error
	// Close finishes the output. A non-nil runErr means the run failed and
	// partial output should be discarded.
	Close(runErr error) error
}

// RecordWriter is the write side of a store
type RecordWriter interface {
	Write(ctx context.Context, r record.Record, useTTL bool) error
	Close() error
}

type storeSink struct {
	writer RecordWriter
	useTTL bool
}

func newStoreSink(writer RecordWriter, useTTL bool) *storeSink {
	return &storeSink{writer: writer, useTTL: useTTL}
}

func (s *storeSink) Put(ctx context.Context, r record.Record) error {
	err := s.writer.Write(ctx, r, s.useTTL)
	if errors.Is(err, store.ErrConnection) {
		return fmt.Errorf("%w: %w", ErrSinkIO, err)
	}
	return err
}

func (s *storeSink) Close(_ error) error {
	return s.writer.Close()
}

type fileSink struct {
	writer *codec.LineWriter
}

func newFileSink(writer *codec.LineWriter) *fileSink {
	return &fileSink{writer: writer}
}

func (s *fileSink) Put(ctx context.Context, r record.Record) error {
	err := s.writer.WriteLine(ctx, r)
	if err == nil || isCancel(err) {
		return err
	}
	if errors.Is(err, codec.ErrWriterClosed) || s.writer.Err() != nil {
		return fmt.Errorf("%w: %w", ErrSinkIO, err)
	}
	return fmt.Errorf("key %q: %w", r.Key(), err)
}

func (s *fileSink) Close(runErr error) error {
	if runErr != nil {
		return s.writer.Abort()
	}
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkIO, err)
	}
	return nil
}
