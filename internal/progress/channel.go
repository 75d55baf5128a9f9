package progress

import (
	"context"
	"sync"
)

// Kind identifies a progress event
type Kind uint8

const (
	KindTotal Kind = iota + 1
	KindItem
	KindFailure
	KindDone
)

var kindNames = map[Kind]string{
	KindTotal:   "total",
	KindItem:    "item",
	KindFailure: "failure",
	KindDone:    "done",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one notification of a transfer run.
//
// Total carries the number of units, Item and Failure carry the unit (a key
// or a dump line reference), Failure and Done carry the error if any.
type Event struct {
	Kind  Kind
	Total int
	Unit  string
	Err   error
}

// Summary is the tally of a finished run
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Channel is the single-producer event stream of one run.
// The producer publishes Total first and Done last; Done closes the stream.
type Channel struct {
	events chan Event

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// New creates a Channel buffering up to capacity events
func New(capacity int) *Channel {
	return &Channel{
		events: make(chan Event, max(capacity, 0)),
	}
}

// Events returns the receive side. It is closed after the Done event.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Total announces the number of units of the run
func (c *Channel) Total(ctx context.Context, n int) error {
	return c.publish(ctx, Event{Kind: KindTotal, Total: n})
}

// Item reports a unit transferred successfully
func (c *Channel) Item(ctx context.Context, unit string) error {
	return c.publish(ctx, Event{Kind: KindItem, Unit: unit})
}

// Failure reports a unit that was skipped because of err
func (c *Channel) Failure(ctx context.Context, unit string, err error) error {
	return c.publish(ctx, Event{Kind: KindFailure, Unit: unit, Err: err})
}

// Done records the terminal error, publishes the Done event and closes the
// stream. Only the first call has an effect. If ctx ends before a consumer
// takes the event, the stream is closed without it.
func (c *Channel) Done(ctx context.Context, err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		ev := Event{Kind: KindDone, Err: err}
		select {
		case c.events <- ev:
		default:
			select {
			case c.events <- ev:
			case <-ctx.Done():
			}
		}
		close(c.events)
	})
}

// Err returns the terminal error recorded by Done
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait drains the stream and returns the tally and the terminal error
func (c *Channel) Wait() (Summary, error) {
	var s Summary
	for ev := range c.events {
		switch ev.Kind {
		case KindTotal:
			s.Total = ev.Total
		case KindItem:
			s.Succeeded++
		case KindFailure:
			s.Failed++
		}
	}
	return s, c.Err()
}

// publish blocks while the buffer is full, until ctx is done
func (c *Channel) publish(ctx context.Context, ev Event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
