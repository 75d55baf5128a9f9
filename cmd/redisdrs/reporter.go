package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/eternalApril/redisdrs/internal/progress"
	"github.com/rcrowley/go-metrics"
)

// reporter prints a progress line while following a run
type reporter struct {
	out      io.Writer
	label    string
	interval time.Duration
	rate     metrics.Meter
	started  time.Time

	summary progress.Summary
}

func newReporter(out io.Writer, label string, interval time.Duration) *reporter {
	return &reporter{
		out:      out,
		label:    strings.ToUpper(label),
		interval: interval,
		rate:     metrics.NewMeter(),
	}
}

// Follow consumes the stream until Done and returns the tally and terminal error
func (r *reporter) Follow(ch *progress.Channel) (progress.Summary, error) {
	defer r.rate.Stop()
	r.started = time.Now()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				r.finish(ch.Err())
				return r.summary, ch.Err()
			}
			r.observe(ev)
		case <-ticker.C:
			r.print()
		}
	}
}

func (r *reporter) observe(ev progress.Event) {
	switch ev.Kind {
	case progress.KindTotal:
		r.summary.Total = ev.Total
	case progress.KindItem:
		r.summary.Succeeded++
		r.rate.Mark(1)
	case progress.KindFailure:
		r.summary.Failed++
		r.rate.Mark(1)
	}
}

func (r *reporter) print() {
	done := r.summary.Succeeded + r.summary.Failed
	fmt.Fprintln(r.out, formatProgress(r.label, done, r.summary.Total, r.rate.RateMean()))
}

func (r *reporter) finish(err error) {
	r.print()

	status := "finished"
	if err != nil {
		status = "failed"
	}
	fmt.Fprintf(r.out, "[%s] %s: %s transferred, %s failed in %s\n",
		r.label,
		status,
		humanize.Comma(int64(r.summary.Succeeded)),
		humanize.Comma(int64(r.summary.Failed)),
		time.Since(r.started).Round(time.Millisecond),
	)
}

// formatProgress renders "[DUMP] 120/2,000 6%  340/s"
func formatProgress(label string, done, total int, perSecond float64) string {
	percent := 100
	if total > 0 {
		percent = done * 100 / total
	}
	return fmt.Sprintf("[%s] %s/%s %d%%  %s/s",
		label,
		humanize.Comma(int64(done)),
		humanize.Comma(int64(total)),
		percent,
		humanize.Comma(int64(perSecond)),
	)
}
