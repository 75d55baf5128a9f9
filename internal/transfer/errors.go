package transfer

import (
	"context"
	"errors"
)

var (
	// ErrSourceIO marks a failure of the source as a whole. It aborts the run.
	ErrSourceIO = errors.New("source i/o failed")
	// ErrSinkIO marks a failure of the sink as a whole. It aborts the run.
	ErrSinkIO = errors.New("sink i/o failed")
	// ErrInvalidRequest is returned for requests that cannot start
	ErrInvalidRequest = errors.New("invalid transfer request")
)

// isFatal reports whether err ends the run instead of skipping one unit
func isFatal(err error) bool {
	return errors.Is(err, ErrSourceIO) || errors.Is(err, ErrSinkIO)
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
