package goSession

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// EventType classifies an [Event].
type EventType string

const (
	// EventPersistenceWriteFailure is emitted when a token snapshot write fails.
	EventPersistenceWriteFailure EventType = "persistence_write_failure"
	// EventPersistenceReadFailure is emitted when the startup restore fails.
	EventPersistenceReadFailure EventType = "persistence_read_failure"
	// EventSessionRestored is emitted when a token is restored at startup.
	EventSessionRestored EventType = "session_restored"
	// EventSessionLogin is emitted after Login.
	EventSessionLogin EventType = "session_login"
	// EventSessionLogout is emitted after Logout.
	EventSessionLogout EventType = "session_logout"
)

// IsFailure reports whether t records a persistence failure.
func (t EventType) IsFailure() bool {
	return t == EventPersistenceWriteFailure || t == EventPersistenceReadFailure
}

// Event is a record on the store's error/observability channel.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Slot      string            `json:"slot,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events to a buffered channel read by the host.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SlogSink logs events. Failures are logged at Warn, everything else at Info.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}
	attrs := []any{
		"event_id", event.ID,
		"type", string(event.Type),
		"slot", event.Slot,
		"success", event.Success,
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}
	if event.Success {
		s.logger.InfoContext(ctx, "session event", attrs...)
		return
	}
	s.logger.WarnContext(ctx, "session event", attrs...)
}

type multiSink []Sink

func (m multiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		s.Emit(ctx, event)
	}
}

// MultiSink fans each event out to every non-nil sink in order.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
