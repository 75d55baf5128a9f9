package transfer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/eternalApril/redisdrs/internal/progress"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// State is the lifecycle position of a Session
type State uint32

const (
	StateInitializing State = iota
	StateEnumerating
	StateTransferring
	StateDraining
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateInitializing: "initializing",
	StateEnumerating:  "enumerating",
	StateTransferring: "transferring",
	StateDraining:     "draining",
	StateCompleted:    "completed",
	StateFailed:       "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Session is one run of the engine. It owns its source and sink and closes
// both before publishing Done.
type Session struct {
	mode   Mode
	bulk   int
	source Source
	sink   Sink
	events *progress.Channel

	state     atomic.Uint32
	total     int
	succeeded *xsync.Counter
	failed    *xsync.Counter

	logger *zap.Logger
}

func newSession(mode Mode, bulk int, source Source, sink Sink, events *progress.Channel, logger *zap.Logger) *Session {
	return &Session{
		mode:      mode,
		bulk:      max(bulk, 1),
		source:    source,
		sink:      sink,
		events:    events,
		succeeded: xsync.NewCounter(),
		failed:    xsync.NewCounter(),
		logger:    logger.With(zap.String("mode", mode.String())),
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(uint32(st))
	if s.logger.Core().Enabled(zap.DebugLevel) {
		s.logger.Debug("session state", zap.Stringer("state", st))
	}
}

// run drives the session to a terminal state and always ends with Done
func (s *Session) run(ctx context.Context) {
	started := time.Now()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	err := s.transfer(runCtx, cancel)

	if closeErr := s.close(err); err == nil {
		err = closeErr
	}

	if err != nil {
		s.setState(StateFailed)
		s.logger.Error("transfer failed",
			zap.Int("total", s.total),
			zap.Int64("succeeded", s.succeeded.Value()),
			zap.Int64("failed", s.failed.Value()),
			zap.Error(err),
		)
	} else {
		s.setState(StateCompleted)
		s.logger.Info("finished successfully",
			zap.Int("total", s.total),
			zap.Int64("succeeded", s.succeeded.Value()),
			zap.Int64("failed", s.failed.Value()),
			zap.Duration("elapsed", time.Since(started)),
		)
	}

	s.events.Done(ctx, err)
}

func (s *Session) transfer(ctx context.Context, cancel context.CancelCauseFunc) error {
	s.setState(StateEnumerating)

	total, err := s.source.Prepare(ctx)
	if err != nil {
		return err
	}
	s.total = total
	s.logger.Info("units to transfer", zap.Int("total", total), zap.Int("bulk", s.bulk))

	if err := s.events.Total(ctx, total); err != nil {
		return err
	}

	s.setState(StateTransferring)

	p := pool.New().WithMaxGoroutines(s.bulk)
	produceErr := s.source.Units(ctx, func(u Unit) error {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		// blocks while bulk units are in flight
		p.Go(func() { s.process(ctx, cancel, u) })
		return nil
	})

	s.setState(StateDraining)
	p.Wait()

	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return produceErr
}

// process moves one unit. Fatal errors cancel the run, the rest only skip the unit.
func (s *Session) process(ctx context.Context, cancel context.CancelCauseFunc, u Unit) {
	r, err := s.source.Fetch(ctx, u)
	if err == nil {
		err = s.sink.Put(ctx, r)
	}

	switch {
	case err == nil:
		s.succeeded.Inc()
		_ = s.events.Item(ctx, r.Key())

	case isFatal(err):
		cancel(err)

	case ctx.Err() != nil && isCancel(err):
		// the run is stopping, the unit is neither done nor failed

	default:
		s.failed.Inc()
		s.logger.Warn("unit skipped", zap.Stringer("unit", u), zap.Error(err))
		_ = s.events.Failure(ctx, u.String(), err)
	}
}

func (s *Session) close(runErr error) error {
	return errors.Join(
		s.source.Close(),
		s.sink.Close(runErr),
	)
}
