package goSession

import (
	"fmt"
	"strings"
	"time"
)

// Config controls persistence, event delivery and metrics for a [Store].
//
// Config values are copied by [Builder.WithConfig]; later edits to the caller's
// value do not affect a built store.
type Config struct {
	Persistence PersistenceConfig
	Events      EventsConfig
	Metrics     MetricsConfig
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// PersistenceConfig names the durable storage slot holding the token
// snapshot and bounds each storage round-trip.
type PersistenceConfig struct {
	Slot         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls the asynchronous event dispatcher. With DropIfFull,
// lifecycle events that do not fit the buffer are counted and discarded;
// persistence failures always wait for room.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables the in-process counters read by the exporters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultSlot is the storage slot used when none is configured.
const DefaultSlot = "auth-storage"

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Persistence: PersistenceConfig{
			Slot:         DefaultSlot,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration and returns an error wrapping
// [ErrInvalidConfig] for the first problem found.
func (c *Config) Validate() error {
	slot := c.Persistence.Slot
	if strings.TrimSpace(slot) == "" {
		return fmt.Errorf("%w: Persistence Slot must not be empty", ErrInvalidConfig)
	}
	if strings.ContainsAny(slot, "/\\") || slot == "." || slot == ".." {
		return fmt.Errorf("%w: Persistence Slot %q must not contain path separators", ErrInvalidConfig, slot)
	}
	if c.Persistence.ReadTimeout <= 0 {
		return fmt.Errorf("%w: Persistence ReadTimeout must be > 0", ErrInvalidConfig)
	}
	if c.Persistence.WriteTimeout <= 0 {
		return fmt.Errorf("%w: Persistence WriteTimeout must be > 0", ErrInvalidConfig)
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("%w: Events BufferSize must be > 0 when Events are enabled", ErrInvalidConfig)
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return fmt.Errorf("%w: Metrics EnableLatencyHistograms requires Metrics Enabled", ErrInvalidConfig)
	}

	return nil
}
