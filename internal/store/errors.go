package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrConnection marks network level failures. They are fatal for a run.
	ErrConnection = errors.New("store connection failed")
	// ErrTypeChanged is returned when a key changed its type between the probe and the batched read
	ErrTypeChanged = errors.New("type changed")
	// ErrConflict is returned when a key kept changing while it was being read
	ErrConflict = errors.New("key modified concurrently")
	// ErrKeyNotFound is returned when a listed key is gone by the time it is read
	ErrKeyNotFound = errors.New("key not found")
	// ErrWriteConflict wraps the first error reply of a write batch
	ErrWriteConflict = errors.New("write rejected")
)

// classify wraps errors that did not come from a server reply into ErrConnection
func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var reply redis.Error
	if errors.As(err, &reply) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrConnection, err)
}
