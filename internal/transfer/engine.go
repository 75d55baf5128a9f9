package transfer

import (
	"context"
	"fmt"

	"github.com/eternalApril/redisdrs/internal/codec"
	"github.com/eternalApril/redisdrs/internal/config"
	"github.com/eternalApril/redisdrs/internal/progress"
	"github.com/eternalApril/redisdrs/internal/store"
	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

// Engine starts transfer runs between stores and dump files
type Engine struct {
	cfg    *config.Config
	fs     billy.Filesystem // dump files live here
	logger *zap.Logger
}

// NewEngine creates an engine. A nil cfg uses config.Default.
func NewEngine(cfg *config.Config, fs billy.Filesystem, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{cfg: cfg, fs: fs, logger: logger}
}

// Dump copies the keys of the store at sourceURI matching pattern into the dump file at path
func (e *Engine) Dump(ctx context.Context, sourceURI, path, pattern string, bulk int) *progress.Channel {
	return e.Run(ctx, Request{Mode: ModeDump, Source: sourceURI, Sink: path, Pattern: pattern, BulkSize: bulk})
}

// Restore writes every record of the dump file at path into the store at targetURI
func (e *Engine) Restore(ctx context.Context, path, targetURI string, useTTL bool, bulk int) *progress.Channel {
	return e.Run(ctx, Request{Mode: ModeRestore, Source: path, Sink: targetURI, UseTTL: useTTL, BulkSize: bulk})
}

// Sync copies the keys matching pattern from one store to another
func (e *Engine) Sync(ctx context.Context, sourceURI, targetURI, pattern string, useTTL bool, bulk int) *progress.Channel {
	return e.Run(ctx, Request{Mode: ModeSync, Source: sourceURI, Sink: targetURI, Pattern: pattern, UseTTL: useTTL, BulkSize: bulk})
}

// Run starts req in the background and returns its event stream.
// A run that passes initialization publishes Total first; every run ends with Done.
func (e *Engine) Run(ctx context.Context, req Request) *progress.Channel {
	events := progress.New(e.cfg.Transfer.EventBuffer)

	if req.Pattern == "" {
		req.Pattern = e.cfg.Transfer.Pattern
	}
	if req.BulkSize == 0 {
		req.BulkSize = e.cfg.Transfer.BulkSize
	}

	go func() {
		session, err := e.open(ctx, req, events)
		if err != nil {
			e.logger.Error("transfer not started", zap.Stringer("mode", req.Mode), zap.Error(err))
			events.Done(ctx, err)
			return
		}
		session.run(ctx)
	}()

	return events
}

// open validates req and connects its source and sink
func (e *Engine) open(ctx context.Context, req Request, events *progress.Channel) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	e.logger.Info("starting transfer",
		zap.Stringer("mode", req.Mode),
		zap.String("pattern", req.Pattern),
		zap.Int("bulk", req.BulkSize),
		zap.Bool("use_ttl", req.UseTTL),
	)

	var (
		source Source
		sink   Sink
	)

	switch req.Mode {
	case ModeDump, ModeSync:
		c, err := e.openStore(ctx, req.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: open source: %w", ErrSourceIO, err)
		}
		source = newStoreSource(c, req.Pattern)
	case ModeRestore:
		source = newFileSource(codec.NewLineReader(e.fs, req.Source))
	}

	switch req.Mode {
	case ModeDump:
		w, err := codec.NewLineWriter(e.fs, req.Sink, codec.WriterOptions{
			Fsync:     codec.ParseFsync(e.cfg.Dump.Fsync),
			QueueSize: e.cfg.Dump.QueueSize,
		}, e.logger)
		if err != nil {
			source.Close() //nolint:errcheck
			return nil, fmt.Errorf("%w: create dump file: %w", ErrSinkIO, err)
		}
		sink = newFileSink(w)
	case ModeRestore, ModeSync:
		c, err := e.openStore(ctx, req.Sink)
		if err != nil {
			source.Close() //nolint:errcheck
			return nil, fmt.Errorf("%w: open target: %w", ErrSinkIO, err)
		}
		sink = newStoreSink(c, req.UseTTL)
	}

	return newSession(req.Mode, req.BulkSize, source, sink, events, e.logger), nil
}

func (e *Engine) openStore(ctx context.Context, uri string) (*store.Client, error) {
	return store.Open(ctx, store.Options{
		URI:            uri,
		DialTimeout:    e.cfg.Store.DialTimeout,
		ReadTimeout:    e.cfg.Store.ReadTimeout,
		WriteTimeout:   e.cfg.Store.WriteTimeout,
		PoolSize:       e.cfg.Store.PoolSize,
		ReadRetries:    e.cfg.Transfer.ReadRetries,
		Enumeration:    e.cfg.Transfer.Enumeration,
		ScanCount:      e.cfg.Transfer.ScanCount,
		PTTLMinVersion: e.cfg.Capability.PTTLMinVersion,
		FallbackPTTL:   e.cfg.Capability.FallbackPTTL,
	}, e.logger)
}
