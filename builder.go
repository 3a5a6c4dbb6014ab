package goSession

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/goSession/storage"
)

// Builder assembles a [Store]. A Builder builds exactly one store.
type Builder struct {
	config    Config
	storage   storage.Storage
	scheduler Scheduler
	sink      Sink
	logger    *slog.Logger

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStorage sets the durable storage backend holding the token slot.
// It is required.
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.storage = s
	return b
}

// WithScheduler sets the scheduler that runs subscriber callbacks. Without
// one, the store starts its own [Loop] and stops it on Close.
func (b *Builder) WithScheduler(s Scheduler) *Builder {
	b.scheduler = s
	return b
}

// WithEventSink sets the destination of the event channel.
func (b *Builder) WithEventSink(sink Sink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, restores the token from storage and
// starts the background writer. A failed restore is not an error: the store
// starts empty and the failure is reported on the event channel.
func (b *Builder) Build(ctx context.Context) (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.storage == nil {
		return nil, ErrStorageRequired
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		cfg:       cfg,
		scheduler: b.scheduler,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger.With("component", "session"),
	}
	if s.scheduler == nil {
		s.ownedLoop = NewLoop()
		s.scheduler = s.ownedLoop
	}
	s.events = newEventDispatcher(cfg.Events, cfg.Persistence.Slot, b.sink)

	s.restore(ctx, b.storage)

	s.writer = newTokenWriter(b.storage, cfg.Persistence.Slot, cfg.Persistence.WriteTimeout, s.writeDone)

	b.built = true
	logger.Debug("session store ready",
		"slot", cfg.Persistence.Slot,
		"token_restored", s.hasToken,
	)
	return s, nil
}
