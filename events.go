package authsession

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Session event types.
const (
	EventRegisterSuccess  = "register_success"
	EventRegisterFailure  = "register_failure"
	EventLoginSuccess     = "login_success"
	EventLoginFailure     = "login_failure"
	EventAutoLoginFailure = "auto_login_failure"
	EventLogout           = "logout"
	EventCacheWarmed      = "cache_warmed"
)

// SessionEvent describes one session transition. It never carries tokens or
// passwords.
type SessionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Email     string    `json:"email,omitempty"`
	Success   bool      `json:"success"`
	// Kind is the apierror kind name on failure.
	Kind   string `json:"kind,omitempty"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EventSink receives session events from the dispatcher goroutine.
type EventSink interface {
	Emit(ctx context.Context, event SessionEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, SessionEvent) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan SessionEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan SessionEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event SessionEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan SessionEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event SessionEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// SlogSink logs events at info level, failures at warn.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event SessionEvent) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.String("event_type", event.EventType)}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", event.Email))
	}
	if event.Kind != "" {
		attrs = append(attrs, slog.String("kind", event.Kind))
	}
	if event.Status != 0 {
		attrs = append(attrs, slog.Int("status_code", event.Status))
	}
	s.logger.LogAttrs(ctx, level, "session event", attrs...)
}
