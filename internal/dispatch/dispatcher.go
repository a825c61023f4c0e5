package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rickgao/realtime-client/internal/dispatch"

// Envelope is a decoded frame: its type tag and the raw object it came from.
type Envelope struct {
	Type string
	Raw  json.RawMessage
}

// Decode decodes the whole frame into the tag's payload type.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// HandlerFunc handles one envelope type.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Table maps type tags to handlers.
type Table map[string]HandlerFunc

// Outcome classifies what Dispatch did with a frame.
type Outcome int

const (
	OutcomeHandled Outcome = iota
	OutcomeUnknown
	OutcomeMalformed
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeFault:
		return "fault"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result reports the tag and outcome of one Dispatch call.
type Result struct {
	Type    string
	Outcome Outcome
}

// Stats contains runtime statistics.
type Stats struct {
	Received   int64
	Dispatched int64
	Malformed  int64
	Unknown    int64
	Faults     int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// Dispatcher routes frames for one channel.
type Dispatcher struct {
	channel string
	logger  *slog.Logger
	tracer  trace.Tracer

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	mu    sync.Mutex
	stats Stats
}

// New creates a dispatcher for channel with an initial handler table.
func New(channel string, table Table, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		channel:  channel,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		handlers: make(map[string]HandlerFunc, len(table)),
	}
	for _, opt := range opts {
		opt(d)
	}
	for tag, fn := range table {
		d.Handle(tag, fn)
	}
	return d
}

// Handle registers fn for tag, replacing any previous handler.
func (d *Dispatcher) Handle(tag string, fn HandlerFunc) {
	if tag == "" {
		panic("dispatch: empty type tag")
	}
	if fn == nil {
		panic("dispatch: nil handler for " + tag)
	}

	d.handlersMu.Lock()
	d.handlers[tag] = fn
	d.handlersMu.Unlock()
}

// Types returns the registered tags.
func (d *Dispatcher) Types() []string {
	d.handlersMu.RLock()
	defer d.handlersMu.RUnlock()

	tags := make([]string, 0, len(d.handlers))
	for tag := range d.handlers {
		tags = append(tags, tag)
	}
	return tags
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Dispatch decodes frame and invokes the handler registered for its tag.
// The returned error is a *MalformedFrameError or *HandlerFaultError; an
// unknown tag is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte) (Result, error) {
	d.count(func(s *Stats) { s.Received++ })

	ctx, span := d.tracer.Start(ctx, "dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("realtime.channel", d.channel),
			attribute.Int("realtime.frame_bytes", len(frame)),
		),
	)
	defer span.End()

	env, err := decode(frame)
	if err != nil {
		d.count(func(s *Stats) { s.Malformed++ })
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed frame")
		return Result{Outcome: OutcomeMalformed}, err
	}

	span.SetName("dispatch " + env.Type)
	span.SetAttributes(attribute.String("realtime.type", env.Type))

	d.handlersMu.RLock()
	fn, ok := d.handlers[env.Type]
	d.handlersMu.RUnlock()

	if !ok {
		d.count(func(s *Stats) { s.Unknown++ })
		d.logger.Debug("skipping message type", "channel", d.channel, "type", env.Type)
		return Result{Type: env.Type, Outcome: OutcomeUnknown}, nil
	}

	if err := invoke(ctx, fn, env); err != nil {
		d.count(func(s *Stats) { s.Faults++ })
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler fault")
		return Result{Type: env.Type, Outcome: OutcomeFault}, err
	}

	d.count(func(s *Stats) { s.Dispatched++ })
	return Result{Type: env.Type, Outcome: OutcomeHandled}, nil
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// typeProbe extracts the tag without decoding the payload.
type typeProbe struct {
	Type *string `json:"type"`
}

func decode(frame []byte) (Envelope, error) {
	var probe typeProbe
	if err := json.Unmarshal(frame, &probe); err != nil {
		return Envelope{}, &MalformedFrameError{Reason: "invalid json object", Size: len(frame), Err: err}
	}
	if probe.Type == nil {
		return Envelope{}, &MalformedFrameError{Reason: "missing type", Size: len(frame)}
	}
	if *probe.Type == "" {
		return Envelope{}, &MalformedFrameError{Reason: "empty type", Size: len(frame)}
	}
	return Envelope{Type: *probe.Type, Raw: json.RawMessage(frame)}, nil
}

// invoke runs fn, converting errors and panics into *HandlerFaultError.
func invoke(ctx context.Context, fn HandlerFunc, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerFaultError{Type: env.Type, Panic: r, Stack: debug.Stack()}
		}
	}()

	if herr := fn(ctx, env); herr != nil {
		return &HandlerFaultError{Type: env.Type, Err: herr}
	}
	return nil
}
