package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/realtime-client/internal/dispatch"
	"github.com/rickgao/realtime-client/internal/journal"
	"github.com/rickgao/realtime-client/internal/metrics"
	"github.com/rickgao/realtime-client/internal/reconnect"
	"github.com/rickgao/realtime-client/internal/transport"
)

// Predicate decides whether a channel is opened. It is evaluated once per Start.
type Predicate func() bool

// Enabled returns a constant predicate.
func Enabled(on bool) Predicate {
	return func() bool { return on }
}

// ChannelSpec describes a channel the manager may open.
type ChannelSpec struct {
	ID   ID
	Path string

	// PerIdentity appends the identity to the endpoint. Such channels are
	// skipped when the identity is empty.
	PerIdentity bool

	Handlers dispatch.Table

	// OnOpen messages are encoded as JSON and sent on every open.
	OnOpen []any
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	Origin      transport.Origin
	Policy      reconnect.Policy
	MailboxSize int
	QueueSize   int
}

// Manager starts and stops the set of channels for one identity.
type Manager interface {
	// Start opens every channel whose predicate holds.
	Start(ctx context.Context, identity string, predicates map[ID]Predicate) error

	// Stop closes all channels and waits for their loops, bounded by ctx.
	Stop(ctx context.Context) error

	// Enqueue queues msg on an active channel.
	Enqueue(id ID, msg any) error

	// Snapshots returns every active channel's state, sorted by id.
	Snapshots() []Snapshot

	// Stats returns aggregate counts.
	Stats() ManagerStats
}

// ManagerStats summarizes the active channels.
type ManagerStats struct {
	Active    int   `json:"active"`
	Open      int   `json:"open"`
	Failed    int   `json:"failed"`
	Exhausted int64 `json:"exhausted"` // channels that gave up since the manager was created
}

// ManagerOption configures a manager.
type ManagerOption func(*manager)

// WithDialer sets the transport dialer.
func WithDialer(d transport.Dialer) ManagerOption {
	return func(m *manager) {
		m.dial = d
	}
}

// WithManagerMetrics records channel activity in mt.
func WithManagerMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *manager) {
		m.metrics = mt
	}
}

// WithReporter sends lifecycle events to r.
func WithReporter(r journal.Reporter) ManagerOption {
	return func(m *manager) {
		m.reporter = r
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver calls fn for every channel transition, after the manager's
// own bookkeeping. fn must not block.
func WithObserver(fn func(Transition)) ManagerOption {
	return func(m *manager) {
		m.observer = fn
	}
}

type manager struct {
	cfg      ManagerConfig
	specs    []ChannelSpec
	dial     transport.Dialer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	reporter journal.Reporter
	observer func(Transition)

	mu        sync.Mutex
	ctx       context.Context
	started   bool
	channels  map[ID]*Channel
	exhausted int64
}

// NewManager creates a connection manager for specs.
func NewManager(cfg ManagerConfig, specs []ChannelSpec, opts ...ManagerOption) Manager {
	m := &manager{
		cfg:      cfg,
		specs:    specs,
		logger:   slog.Default(),
		channels: make(map[ID]*Channel),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dial == nil {
		m.dial = transport.NewDialer(transport.DefaultClientConfig(), m.logger)
	}
	return m
}

// Start implements Manager.
func (m *manager) Start(ctx context.Context, identity string, predicates map[ID]Predicate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	type plan struct {
		spec   ChannelSpec
		onOpen [][]byte
	}
	var plans []plan
	for _, spec := range m.specs {
		pred := predicates[spec.ID]
		if pred == nil || !pred() {
			m.logger.Debug("channel not enabled", "channel", string(spec.ID))
			continue
		}
		if spec.PerIdentity && identity == "" {
			m.logger.Info("skipping channel without identity", "channel", string(spec.ID))
			continue
		}
		onOpen, err := encodeAll(spec.OnOpen)
		if err != nil {
			return fmt.Errorf("encode open messages for %s: %w", spec.ID, err)
		}
		plans = append(plans, plan{spec: spec, onOpen: onOpen})
	}

	m.ctx = ctx
	for _, p := range plans {
		ch := NewChannel(m.channelConfig(p.spec, p.onOpen),
			dispatch.New(string(p.spec.ID), p.spec.Handlers, m.logger),
			m.logger,
			WithMetrics(m.metrics),
			WithTransitionHook(m.observe),
		)
		m.channels[p.spec.ID] = ch
		ch.Open(identity)
	}
	m.started = true

	m.logger.Info("connection manager started", "channels", len(plans))
	return nil
}

func (m *manager) channelConfig(spec ChannelSpec, onOpen [][]byte) ChannelConfig {
	origin, path, perIdentity := m.cfg.Origin, spec.Path, spec.PerIdentity
	return ChannelConfig{
		ID: spec.ID,
		Endpoint: func(identity string) string {
			if !perIdentity {
				identity = ""
			}
			return transport.Endpoint(origin, path, identity)
		},
		Dial:        m.dial,
		Policy:      m.cfg.Policy,
		OnOpen:      onOpen,
		MailboxSize: m.cfg.MailboxSize,
		QueueSize:   m.cfg.QueueSize,
	}
}

// Stop implements Manager.
func (m *manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[ID]*Channel)
	wasStarted := m.started
	m.started = false
	m.mu.Unlock()

	if !wasStarted && len(channels) == 0 {
		return nil
	}
	m.logger.Info("stopping connection manager", "channels", len(channels))

	for _, ch := range channels {
		ch.Stop()
	}

	for id, ch := range channels {
		select {
		case <-ch.Done():
		case <-ctx.Done():
			m.logger.Warn("shutdown timeout, channel still stopping", "channel", string(id))
			return nil
		}
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Enqueue implements Manager.
func (m *manager) Enqueue(id ID, msg any) error {
	m.mu.Lock()
	ch, ok := m.channels[id]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	return ch.Enqueue(msg)
}

// Snapshots implements Manager.
func (m *manager) Snapshots() []Snapshot {
	m.mu.Lock()
	out := make([]Snapshot, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.Snapshot())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats implements Manager.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ManagerStats{Active: len(m.channels), Exhausted: m.exhausted}
	for _, ch := range m.channels {
		switch ch.State() {
		case StateOpen:
			stats.Open++
		case StateFailed:
			stats.Failed++
		}
	}
	return stats
}

// observe runs on the channel's loop goroutine.
func (m *manager) observe(t Transition) {
	var exhausted *ReconnectExhaustedError
	if t.To == StateFailed && errors.As(t.Err, &exhausted) {
		m.mu.Lock()
		m.exhausted++
		m.mu.Unlock()
		m.logger.Error("channel gave up reconnecting",
			"channel", string(exhausted.Channel),
			"attempts", exhausted.Attempts,
			"error", exhausted.Last,
		)
	}

	if m.reporter != nil {
		if kind, ok := journalKind(t.To); ok {
			ev := journal.NewEvent(string(t.Channel), kind, t.Attempt, t.Err)
			ev.Delay = t.Delay
			ev.At = t.At
			m.mu.Lock()
			ctx := m.ctx
			m.mu.Unlock()
			m.reporter.Report(ctx, ev)
		}
	}

	if m.observer != nil {
		m.observer(t)
	}
}

func journalKind(s State) (journal.Kind, bool) {
	switch s {
	case StateOpen:
		return journal.KindOpened, true
	case StateReconnecting:
		return journal.KindReconnectScheduled, true
	case StateFailed:
		return journal.KindFailed, true
	case StateClosed:
		return journal.KindClosed, true
	}
	return "", false
}

func encodeAll(msgs []any) ([][]byte, error) {
	out := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		b, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
