package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "realtime"

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "realtime").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the channel collectors.
type Metrics struct {
	channelState     *prometheus.GaugeVec
	connectsTotal    *prometheus.CounterVec
	reconnectsTotal  *prometheus.CounterVec
	exhaustedTotal   *prometheus.CounterVec
	framesReceived   *prometheus.CounterVec
	framesDispatched *prometheus.CounterVec
	framesMalformed  *prometheus.CounterVec
	framesUnknown    *prometheus.CounterVec
	handlerFaults    *prometheus.CounterVec
	framesSent       *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	transportErrors  *prometheus.CounterVec
}

// New registers the collectors and returns them.
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: DefaultNamespace,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		}, labels)
	}

	return &Metrics{
		channelState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "channel_state",
			Help:        "Current channel state (1 for the active state, 0 otherwise)",
			ConstLabels: cfg.ConstLabels,
		}, []string{"channel", "state"}),

		connectsTotal:    counter("connects_total", "Total successful channel opens", "channel"),
		reconnectsTotal:  counter("reconnects_scheduled_total", "Total reconnect attempts scheduled", "channel"),
		exhaustedTotal:   counter("reconnects_exhausted_total", "Total channels that gave up reconnecting", "channel"),
		framesReceived:   counter("frames_received_total", "Total text frames received", "channel"),
		framesDispatched: counter("frames_dispatched_total", "Total frames delivered to a handler", "channel", "type"),
		framesMalformed:  counter("frames_malformed_total", "Total frames dropped as malformed", "channel"),
		framesUnknown:    counter("frames_unknown_total", "Total frames with an unrecognized type", "channel"),
		handlerFaults:    counter("handler_faults_total", "Total handler errors and panics", "channel", "type"),
		framesSent:       counter("frames_sent_total", "Total frames written to the transport", "channel"),
		transportErrors:  counter("transport_errors_total", "Total transport failures by operation", "channel", "op"),

		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "pending_queue_depth",
			Help:        "Frames waiting for the channel to open",
			ConstLabels: cfg.ConstLabels,
		}, []string{"channel"}),
	}
}

// SetState marks state as the channel's only active state.
func (m *Metrics) SetState(channel string, state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.channelState.WithLabelValues(channel, s).Set(v)
	}
}

// Connected records a successful open.
func (m *Metrics) Connected(channel string) {
	if m == nil {
		return
	}
	m.connectsTotal.WithLabelValues(channel).Inc()
}

// ReconnectScheduled records a scheduled reconnect.
func (m *Metrics) ReconnectScheduled(channel string) {
	if m == nil {
		return
	}
	m.reconnectsTotal.WithLabelValues(channel).Inc()
}

// Exhausted records a channel entering the failed state.
func (m *Metrics) Exhausted(channel string) {
	if m == nil {
		return
	}
	m.exhaustedTotal.WithLabelValues(channel).Inc()
}

// FrameReceived records an inbound frame.
func (m *Metrics) FrameReceived(channel string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(channel).Inc()
}

// FrameDispatched records a frame handed to its handler.
func (m *Metrics) FrameDispatched(channel, tag string) {
	if m == nil {
		return
	}
	m.framesDispatched.WithLabelValues(channel, tag).Inc()
}

// FrameMalformed records an undecodable frame.
func (m *Metrics) FrameMalformed(channel string) {
	if m == nil {
		return
	}
	m.framesMalformed.WithLabelValues(channel).Inc()
}

// FrameUnknown records a frame with no registered handler.
func (m *Metrics) FrameUnknown(channel string) {
	if m == nil {
		return
	}
	m.framesUnknown.WithLabelValues(channel).Inc()
}

// HandlerFault records a handler error or panic.
func (m *Metrics) HandlerFault(channel, tag string) {
	if m == nil {
		return
	}
	m.handlerFaults.WithLabelValues(channel, tag).Inc()
}

// FrameSent records an outbound frame.
func (m *Metrics) FrameSent(channel string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(channel).Inc()
}

// TransportError records a transport failure for op ("dial", "read", "send").
func (m *Metrics) TransportError(channel, op string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(channel, op).Inc()
}

// SetQueueDepth records the pending queue length.
func (m *Metrics) SetQueueDepth(channel string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(channel).Set(float64(depth))
}
