package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eternalApril/redisdrs/internal/codec"
	"github.com/eternalApril/redisdrs/internal/progress"
	"github.com/eternalApril/redisdrs/internal/record"
	"github.com/eternalApril/redisdrs/internal/store"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource serves string records for keys; failures maps a key to the error Fetch returns
type fakeSource struct {
	keys       []string
	failures   map[string]error
	prepareErr error
	closed     atomic.Bool
}

func (f *fakeSource) Prepare(_ context.Context) (int, error) {
	return len(f.keys), f.prepareErr
}

func (f *fakeSource) Units(ctx context.Context, emit func(Unit) error) error {
	for i, k := range f.keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(Unit{Index: i + 1, Key: k}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) Fetch(_ context.Context, u Unit) (record.Record, error) {
	if err, ok := f.failures[u.Key]; ok {
		return record.Record{}, err
	}
	return record.New(u.Key, record.Scalar("v:"+u.Key), record.NoExpiry())
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeSink records what it receives and tracks the peak number of concurrent Puts
type fakeSink struct {
	delay    time.Duration
	failures map[string]error
	block    chan struct{} // when set, Put waits on it or on ctx

	mu       sync.Mutex
	got      []string
	inFlight atomic.Int32
	peak     atomic.Int32
	closed   bool
	runErr   error
}

func (f *fakeSink) Put(ctx context.Context, r record.Record) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.failures[r.Key()]; ok {
		return err
	}

	f.mu.Lock()
	f.got = append(f.got, r.Key())
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) Close(runErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.runErr = runErr
	return nil
}

func keys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("k%03d", i)
	}
	return out
}

func collect(t *testing.T, ch *progress.Channel) []progress.Event {
	t.Helper()
	var events []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("run did not finish")
		}
	}
}

func runSession(source Source, sink Sink, bulk int) (*Session, *progress.Channel) {
	ch := progress.New(16)
	s := newSession(ModeSync, bulk, source, sink, ch, zap.NewNop())
	go s.run(context.Background())
	return s, ch
}

func TestSession_DrainsEveryUnit(t *testing.T) {
	const total = 20

	for _, bulk := range []int{1, total, total * 3} {
		t.Run(fmt.Sprintf("bulk %d", bulk), func(t *testing.T) {
			source := &fakeSource{keys: keys(total)}
			sink := &fakeSink{delay: time.Millisecond}

			s, ch := runSession(source, sink, bulk)
			events := collect(t, ch)

			require.NotEmpty(t, events)
			assert.Equal(t, progress.KindTotal, events[0].Kind)
			assert.Equal(t, total, events[0].Total)

			last := events[len(events)-1]
			assert.Equal(t, progress.KindDone, last.Kind)
			assert.NoError(t, last.Err)

			items := 0
			for _, ev := range events[1 : len(events)-1] {
				assert.Equal(t, progress.KindItem, ev.Kind)
				items++
			}
			assert.Equal(t, total, items)
			assert.ElementsMatch(t, source.keys, sink.got)

			assert.LessOrEqual(t, int(sink.peak.Load()), bulk)
			assert.Equal(t, StateCompleted, s.State())
			assert.True(t, source.closed.Load())
			assert.True(t, sink.closed)
			assert.NoError(t, sink.runErr)
		})
	}
}

func TestSession_BulkOneIsSequential(t *testing.T) {
	source := &fakeSource{keys: keys(10)}
	sink := &fakeSink{}

	_, ch := runSession(source, sink, 1)
	collect(t, ch)

	assert.Equal(t, int32(1), sink.peak.Load())
	assert.Equal(t, source.keys, sink.got)
}

func TestSession_PerItemFailuresAreIsolated(t *testing.T) {
	source := &fakeSource{
		keys: keys(6),
		failures: map[string]error{
			"k001": fmt.Errorf("%w: %q from string to list", store.ErrTypeChanged, "k001"),
			"k004": fmt.Errorf("%w: %q", store.ErrKeyNotFound, "k004"),
		},
	}
	sink := &fakeSink{failures: map[string]error{
		"k002": fmt.Errorf("%w: %q", store.ErrWriteConflict, "k002"),
	}}

	_, ch := runSession(source, sink, 3)
	summary, err := ch.Wait()

	require.NoError(t, err)
	assert.Equal(t, progress.Summary{Total: 6, Succeeded: 3, Failed: 3}, summary)
	assert.ElementsMatch(t, []string{"k000", "k003", "k005"}, sink.got)
}

func TestSession_FailureEventsCarryUnitAndCause(t *testing.T) {
	source := &fakeSource{
		keys:     []string{"a", "b"},
		failures: map[string]error{"b": store.ErrTypeChanged},
	}

	_, ch := runSession(source, &fakeSink{}, 1)
	events := collect(t, ch)

	require.Len(t, events, 4)
	assert.Equal(t, progress.Event{Kind: progress.KindItem, Unit: "a"}, events[1])
	assert.Equal(t, progress.KindFailure, events[2].Kind)
	assert.Equal(t, "b", events[2].Unit)
	assert.ErrorIs(t, events[2].Err, store.ErrTypeChanged)
}

func TestSession_FatalSinkErrorAbortsRun(t *testing.T) {
	source := &fakeSource{keys: keys(100)}
	sink := &fakeSink{failures: map[string]error{
		"k010": fmt.Errorf("%w: %w", ErrSinkIO, store.ErrConnection),
	}}

	s, ch := runSession(source, sink, 4)
	summary, err := ch.Wait()

	assert.ErrorIs(t, err, ErrSinkIO)
	assert.Less(t, summary.Succeeded+summary.Failed, 100)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, StateFailed, s.State())
	assert.ErrorIs(t, sink.runErr, ErrSinkIO)
	assert.True(t, source.closed.Load())
}

func TestSession_FatalSourceErrorAbortsRun(t *testing.T) {
	source := &fakeSource{
		keys:     keys(50),
		failures: map[string]error{"k005": fmt.Errorf("%w: %w", ErrSourceIO, store.ErrConnection)},
	}

	_, ch := runSession(source, &fakeSink{}, 1)
	summary, err := ch.Wait()

	assert.ErrorIs(t, err, ErrSourceIO)
	assert.Equal(t, 5, summary.Succeeded)
}

func TestSession_PrepareFailure(t *testing.T) {
	source := &fakeSource{prepareErr: fmt.Errorf("%w: %w", ErrSourceIO, store.ErrConnection)}
	sink := &fakeSink{}

	_, ch := runSession(source, sink, 1)
	events := collect(t, ch)

	require.Len(t, events, 1)
	assert.Equal(t, progress.KindDone, events[0].Kind)
	assert.ErrorIs(t, events[0].Err, ErrSourceIO)
	assert.ErrorIs(t, sink.runErr, ErrSourceIO)
}

func TestSession_CallerCancel(t *testing.T) {
	source := &fakeSource{keys: keys(10)}
	sink := &fakeSink{block: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	ch := progress.New(16)
	s := newSession(ModeDump, 2, source, sink, ch, zap.NewNop())
	go s.run(ctx)

	require.Eventually(t, func() bool { return sink.inFlight.Load() == 2 }, time.Second, time.Millisecond)
	cancel()

	summary, err := ch.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, StateFailed, s.State())
}

func TestSession_RestoreIsolatesMalformedLines(t *testing.T) {
	fs := memfs.New()
	content := `{"key":"a","type":"string","ttl":-1,"expireAt":-1,"value":"1"}` + "\r\n" +
		"not-json\r\n" +
		"\r\n" +
		`{"key":"b","type":"list","ttl":-1,"expireAt":-1,"value":["x"]}` + "\r\n" +
		`{"key":"c","type":"stream","ttl":-1,"expireAt":-1,"value":[]}` + "\r\n"
	require.NoError(t, util.WriteFile(fs, "in.dump", []byte(content), 0o644))

	sink := &fakeSink{}
	_, ch := runSession(newFileSource(codec.NewLineReader(fs, "in.dump")), sink, 2)
	events := collect(t, ch)

	assert.Equal(t, progress.Event{Kind: progress.KindTotal, Total: 4}, events[0])

	failures := map[string]error{}
	for _, ev := range events {
		if ev.Kind == progress.KindFailure {
			failures[ev.Unit] = ev.Err
		}
	}
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures["line 2"], codec.ErrMalformedLine)
	assert.ErrorIs(t, failures["line 5"], record.ErrUnknownType)

	assert.NoError(t, events[len(events)-1].Err)
	assert.ElementsMatch(t, []string{"a", "b"}, sink.got)
}

func TestSession_MissingDumpFile(t *testing.T) {
	_, ch := runSession(newFileSource(codec.NewLineReader(memfs.New(), "missing.dump")), &fakeSink{}, 1)
	events := collect(t, ch)

	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, ErrSourceIO)
}

func TestUnit_String(t *testing.T) {
	assert.Equal(t, "user:1", Unit{Index: 3, Key: "user:1"}.String())
	assert.Equal(t, "line 7", Unit{Index: 7, Line: "{}"}.String())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", ErrSinkIO), ErrSinkIO))
}
