package codec

import (
	"bufio"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternalApril/redisdrs/internal/record"
	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

var ErrWriterClosed = errors.New("line writer closed")

// FsyncPolicy controls how often the dump file is synced to disk
type FsyncPolicy int

const (
	FsyncAlways FsyncPolicy = iota + 1
	FsyncEverySec
	FsyncNo
)

// ParseFsync maps a config value to a policy. Unknown values fall back to everysec.
func ParseFsync(s string) FsyncPolicy {
	switch s {
	case "always":
		return FsyncAlways
	case "no":
		return FsyncNo
	default:
		return FsyncEverySec
	}
}

// WriterOptions tunes a LineWriter
type WriterOptions struct {
	Fsync     FsyncPolicy
	QueueSize int // lines buffered before WriteLine blocks
}

type syncer interface {
	Sync() error
}

// LineWriter appends encoded records to a dump file.
// Lines are queued and written by a single background goroutine; the output
// lives in <path>.tmp until Close renames it into place.
type LineWriter struct {
	fs      billy.Filesystem
	file    billy.File
	writer  *bufio.Writer
	path    string
	tmpPath string
	policy  FsyncPolicy

	lines chan []byte
	stop  chan struct{}
	done  chan struct{}

	mu  sync.Mutex
	err error // first background failure, sticky

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	logger    *zap.Logger
}

// NewLineWriter creates the temporary output file and starts the background writer
func NewLineWriter(fs billy.Filesystem, path string, opts WriterOptions, logger *zap.Logger) (*LineWriter, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Fsync == 0 {
		opts.Fsync = FsyncEverySec
	}

	tmpPath := path + ".tmp"
	f, err := fs.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	w := &LineWriter{
		fs:      fs,
		file:    f,
		writer:  bufio.NewWriterSize(f, 256*1024),
		path:    path,
		tmpPath: tmpPath,
		policy:  opts.Fsync,
		lines:   make(chan []byte, opts.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}

	go w.listen()

	return w, nil
}

// WriteLine encodes r and queues it. It blocks while the queue is full,
// which is the backpressure signal for producers.
func (w *LineWriter) WriteLine(ctx context.Context, r record.Record) error {
	if w.closed.Load() {
		return ErrWriterClosed
	}
	if err := w.Err(); err != nil {
		return err
	}

	payload, err := Encode(r)
	if err != nil {
		return err
	}
	payload = append(payload, LineEnding...)

	select {
	case w.lines <- payload:
		return nil
	case <-w.done:
		if err := w.Err(); err != nil {
			return err
		}
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the first background write failure
func (w *LineWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *LineWriter) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
		w.logger.Error("dump file write failed", zap.String("file", w.tmpPath), zap.Error(err))
	}
	w.mu.Unlock()
}

func (w *LineWriter) listen() {
	defer close(w.done)

	var tick <-chan time.Time
	if w.policy == FsyncEverySec {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case p := <-w.lines:
			w.write(p)

		case <-tick:
			w.sync()

		case <-w.stop:
			for {
				select {
				case p := <-w.lines:
					w.write(p)
				default:
					return
				}
			}
		}
	}
}

func (w *LineWriter) write(p []byte) {
	if w.Err() != nil {
		return
	}
	if _, err := w.writer.Write(p); err != nil {
		w.fail(err)
		return
	}
	if w.policy == FsyncAlways {
		w.sync()
	}
}

func (w *LineWriter) sync() {
	if w.Err() != nil {
		return
	}
	if err := w.writer.Flush(); err != nil {
		w.fail(err)
		return
	}
	if s, ok := w.file.(syncer); ok {
		if err := s.Sync(); err != nil {
			w.fail(err)
		}
	}
}

// shutdown stops the background writer after it drained the queue
func (w *LineWriter) shutdown() {
	w.closed.Store(true)
	close(w.stop)
	<-w.done
}

// Close drains the queue, syncs the file and atomically moves it to its final path.
// Callers must not call WriteLine concurrently with Close.
func (w *LineWriter) Close() error {
	w.closeOnce.Do(func() {
		w.shutdown()
		w.sync()

		err := w.Err()
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			w.fs.Remove(w.tmpPath) //nolint:errcheck
			w.closeErr = err
			return
		}

		w.closeErr = w.fs.Rename(w.tmpPath, w.path)
	})
	return w.closeErr
}

// Abort stops the writer and discards the temporary file, leaving any
// previous file at path untouched
func (w *LineWriter) Abort() error {
	w.closeOnce.Do(func() {
		w.shutdown()
		w.file.Close() //nolint:errcheck
		w.closeErr = w.fs.Remove(w.tmpPath)
	})
	return w.closeErr
}
