package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a journal event.
type Kind string

const (
	KindOpened             Kind = "opened"
	KindReconnectScheduled Kind = "reconnect_scheduled"
	KindFailed             Kind = "failed"
	KindClosed             Kind = "closed"
)

// Event is one reportable channel condition.
type Event struct {
	ID      uuid.UUID
	Channel string
	Kind    Kind
	Attempt int
	Delay   time.Duration
	Error   string
	At      time.Time
}

// NewEvent builds an event with a fresh id.
func NewEvent(channel string, kind Kind, attempt int, err error) Event {
	ev := Event{
		ID:      uuid.New(),
		Channel: channel,
		Kind:    kind,
		Attempt: attempt,
		At:      time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Reporter receives journal events. Implementations must not block.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// LogReporter writes events to a logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With("component", "journal")}
}

// Report logs ev. Failures log at error level.
func (r *LogReporter) Report(ctx context.Context, ev Event) {
	level := slog.LevelInfo
	if ev.Kind == KindFailed {
		level = slog.LevelError
	}
	attrs := []any{
		"event_id", ev.ID.String(),
		"channel", ev.Channel,
		"kind", string(ev.Kind),
		"attempt", ev.Attempt,
	}
	if ev.Delay > 0 {
		attrs = append(attrs, "delay", ev.Delay)
	}
	if ev.Error != "" {
		attrs = append(attrs, "error", ev.Error)
	}
	r.logger.Log(ctx, level, "channel event", attrs...)
}

// Multi fans an event out to several reporters.
type Multi []Reporter

// Report forwards ev to every non-nil reporter.
func (m Multi) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, ev)
		}
	}
}
