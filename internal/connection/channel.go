package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/realtime-client/internal/dispatch"
	"github.com/rickgao/realtime-client/internal/metrics"
	"github.com/rickgao/realtime-client/internal/queue"
	"github.com/rickgao/realtime-client/internal/reconnect"
	"github.com/rickgao/realtime-client/internal/transport"
)

// Channel defaults.
const (
	DefaultMailboxSize = 64
	DefaultQueueSize   = 16
)

// ChannelConfig configures one channel.
type ChannelConfig struct {
	ID ID

	// Endpoint builds the URL for an identity.
	Endpoint func(identity string) string

	Dial   transport.Dialer
	Policy reconnect.Policy

	// OnOpen frames are sent on every successful open, ahead of the queue.
	OnOpen [][]byte

	MailboxSize int
	QueueSize   int
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithMetrics records channel activity in m.
func WithMetrics(m *metrics.Metrics) ChannelOption {
	return func(c *Channel) {
		c.metrics = m
	}
}

// WithTransitionHook calls fn on every state change, from the channel's loop.
// fn must not block.
func WithTransitionHook(fn func(Transition)) ChannelOption {
	return func(c *Channel) {
		c.onTransition = fn
	}
}

// stopper is the part of *time.Timer a channel needs.
type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// Channel owns one logical websocket channel: its transport, its reconnect
// timer and its pending queue. All mutable state belongs to a single loop
// goroutine and changes only in response to events in its mailbox.
type Channel struct {
	cfg        ChannelConfig
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	onTransition func(Transition)
	after        afterFunc
	now          func() time.Time

	events chan event
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned state.
	state      State
	identity   string
	endpoint   string
	attempt    int
	gen        uint64 // current transport generation
	timerGen   uint64 // current reconnect timer generation
	timer      stopper
	nextDelay  time.Duration
	client     transport.Client
	connCtx    context.Context
	connCancel context.CancelFunc
	pending    *queue.Queue[[]byte]
	lastErr    error
	openedAt   time.Time

	snapMu sync.RWMutex
	snap   Snapshot
}

// NewChannel creates a channel in Idle and starts its loop.
func NewChannel(cfg ChannelConfig, d *dispatch.Dispatcher, logger *slog.Logger, opts ...ChannelOption) *Channel {
	c := newChannel(cfg, d, logger, opts...)
	go c.run()
	return c
}

// newChannel builds a channel without starting its loop.
func newChannel(cfg ChannelConfig, d *dispatch.Dispatcher, logger *slog.Logger, opts ...ChannelOption) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = DefaultMailboxSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Policy == (reconnect.Policy{}) {
		cfg.Policy = reconnect.DefaultPolicy()
	}
	if cfg.Endpoint == nil {
		panic(fmt.Sprintf("connection: channel %s has no endpoint", cfg.ID))
	}
	if cfg.Dial == nil {
		panic(fmt.Sprintf("connection: channel %s has no dialer", cfg.ID))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger.With("channel", string(cfg.ID)),
		after:      realAfterFunc,
		now:        time.Now,
		events:     make(chan event, cfg.MailboxSize),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		pending:    queue.New[[]byte](cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetState(string(cfg.ID), StateIdle.String(), allStateNames())
	c.publish()
	return c
}

// ID returns the channel id.
func (c *Channel) ID() ID {
	return c.cfg.ID
}

// Open requests a connection for identity. It has no effect unless the
// channel is Idle.
func (c *Channel) Open(identity string) {
	c.post(openEvent{identity: identity})
}

// Stop closes the channel permanently. Stop is idempotent.
func (c *Channel) Stop() {
	c.post(stopEvent{})
}

// Enqueue encodes msg as JSON and queues it for sending. Messages are sent in
// order once the channel is open.
func (c *Channel) Enqueue(msg any) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.EnqueueRaw(frame)
}

// EnqueueRaw queues an already encoded frame. It returns once the channel
// loop has taken the frame; nil means it was queued before the channel
// closed. Handlers must not call it on their own channel.
func (c *Channel) EnqueueRaw(frame []byte) error {
	res := make(chan error, 1)
	if !c.post(enqueueEvent{frame: frame, res: res}) {
		return ErrChannelClosed
	}
	select {
	case err := <-res:
		return err
	case <-c.done:
		// Replies are sent before done closes.
		select {
		case err := <-res:
			return err
		default:
			return ErrChannelClosed
		}
	}
}

// Done is closed once the channel reaches Closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Snapshot returns the channel's last published state.
func (c *Channel) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// State returns the channel's last published state.
func (c *Channel) State() State {
	return c.Snapshot().State
}

// post delivers ev to the loop. It reports false once the channel is closed.
func (c *Channel) post(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Channel) run() {
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.done:
			return
		}
	}
}

func (c *Channel) handle(ev event) {
	switch ev := ev.(type) {
	case openEvent:
		c.handleOpen(ev)
	case stopEvent:
		c.handleStop()
	case enqueueEvent:
		c.handleEnqueue(ev)
	case readyEvent:
		c.handleReady(ev)
	case dialFailedEvent:
		c.handleDialFailed(ev)
	case frameEvent:
		c.handleFrame(ev)
	case closedEvent:
		c.handleClosed(ev)
	case timerEvent:
		c.handleTimer(ev)
	}
	c.publish()
}

func (c *Channel) handleOpen(ev openEvent) {
	switch c.state {
	case StateIdle:
		c.identity = ev.identity
		c.endpoint = c.cfg.Endpoint(ev.identity)
		c.connect()
	case StateConnecting, StateOpen:
		c.logger.Debug("open ignored, already connecting or open", "state", c.state)
	default:
		c.logger.Debug("open ignored", "state", c.state)
	}
}

func (c *Channel) handleStop() {
	if c.state == StateClosed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
	c.teardown()

	if dropped := c.pending.Len(); dropped > 0 {
		c.logger.Info("discarding queued messages", "count", dropped)
	}
	c.pending.Clear()
	c.metrics.SetQueueDepth(string(c.cfg.ID), 0)

	c.setState(StateClosed, 0, nil)
	c.cancel()
	close(c.done)
}

func (c *Channel) handleEnqueue(ev enqueueEvent) {
	if c.state == StateClosed {
		ev.reply(ErrChannelClosed)
		return
	}
	c.pending.Push(ev.frame)
	ev.reply(nil)
	if c.state == StateOpen {
		c.flush()
		return
	}
	c.metrics.SetQueueDepth(string(c.cfg.ID), c.pending.Len())
}

func (c *Channel) handleReady(ev readyEvent) {
	if ev.gen != c.gen || c.state != StateConnecting {
		c.logger.Debug("discarding stale connection", "conn_id", ev.client.ID())
		ev.client.Close()
		return
	}

	c.client = ev.client
	c.attempt = 0
	c.nextDelay = 0
	c.lastErr = nil
	c.openedAt = c.now()
	c.setState(StateOpen, 0, nil)

	go c.pump(c.connCtx, c.gen, c.client)

	for _, frame := range c.cfg.OnOpen {
		if err := c.client.Send(frame); err != nil {
			c.fail("send", err)
			return
		}
		c.metrics.FrameSent(string(c.cfg.ID))
	}
	c.flush()
}

func (c *Channel) handleDialFailed(ev dialFailedEvent) {
	if ev.gen != c.gen || c.state != StateConnecting {
		return
	}
	c.fail("dial", ev.err)
}

func (c *Channel) handleClosed(ev closedEvent) {
	if ev.gen != c.gen || c.state != StateOpen {
		return
	}
	c.fail("read", ev.err)
}

func (c *Channel) handleTimer(ev timerEvent) {
	if ev.gen != c.timerGen || c.state != StateReconnecting {
		return
	}
	c.timer = nil
	c.connect()
}

func (c *Channel) handleFrame(ev frameEvent) {
	if ev.gen != c.gen || c.state != StateOpen {
		return
	}
	id := string(c.cfg.ID)
	c.metrics.FrameReceived(id)
	if c.dispatcher == nil {
		return
	}

	res, err := c.dispatcher.Dispatch(c.connCtx, ev.frame.Data)
	switch res.Outcome {
	case dispatch.OutcomeHandled:
		c.metrics.FrameDispatched(id, res.Type)
	case dispatch.OutcomeUnknown:
		c.metrics.FrameUnknown(id)
		c.logger.Debug("ignoring unknown frame type", "type", res.Type)
	case dispatch.OutcomeMalformed:
		c.metrics.FrameMalformed(id)
		c.logger.Warn("dropping malformed frame", "error", err)
	case dispatch.OutcomeFault:
		c.metrics.HandlerFault(id, res.Type)
		c.logger.Error("handler failed", "type", res.Type, "error", err)
	}
}

// connect starts a new transport generation and dials it in the background.
func (c *Channel) connect() {
	c.gen++
	gen := c.gen
	c.connCtx, c.connCancel = context.WithCancel(c.ctx)
	ctx, url, dial := c.connCtx, c.endpoint, c.cfg.Dial

	c.setState(StateConnecting, 0, nil)

	go func() {
		client, err := dial(ctx, url)
		if err != nil {
			c.post(dialFailedEvent{gen: gen, err: err})
			return
		}
		if !c.post(readyEvent{gen: gen, client: client}) {
			client.Close()
		}
	}()
}

// pump forwards one transport's frames and failure into the mailbox.
func (c *Channel) pump(ctx context.Context, gen uint64, client transport.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-client.Messages():
			if !c.post(frameEvent{gen: gen, frame: frame}) {
				return
			}
		case err := <-client.Errors():
			// Deliver frames that arrived before the failure.
			for {
				select {
				case frame := <-client.Messages():
					if !c.post(frameEvent{gen: gen, frame: frame}) {
						return
					}
					continue
				default:
				}
				break
			}
			c.post(closedEvent{gen: gen, err: err})
			return
		}
	}
}

// flush sends queued frames in order. A frame leaves the queue only once it
// was written; on failure it stays at the head.
func (c *Channel) flush() {
	id := string(c.cfg.ID)
	for c.pending.Len() > 0 {
		frame, _ := c.pending.Peek()
		if err := c.client.Send(frame); err != nil {
			c.metrics.SetQueueDepth(id, c.pending.Len())
			c.fail("send", err)
			return
		}
		c.pending.Pop()
		c.metrics.FrameSent(id)
	}
	c.metrics.SetQueueDepth(id, 0)
}

// fail tears down the transport and schedules a reconnect, or gives up.
func (c *Channel) fail(op string, err error) {
	terr := &TransportError{Channel: c.cfg.ID, Op: op, Err: err}
	c.lastErr = terr
	c.metrics.TransportError(string(c.cfg.ID), op)
	c.logger.Warn("transport error", "op", op, "state", c.state, "attempt", c.attempt, "error", err)

	c.teardown()

	if c.cfg.Policy.Exhausted(c.attempt) {
		exhausted := &ReconnectExhaustedError{Channel: c.cfg.ID, Attempts: c.attempt, Last: terr}
		c.lastErr = exhausted
		c.setState(StateFailed, 0, exhausted)
		return
	}

	c.attempt++
	delay := c.cfg.Policy.Delay(c.attempt)
	c.timerGen++
	gen := c.timerGen
	c.nextDelay = delay
	c.timer = c.after(delay, func() {
		c.post(timerEvent{gen: gen})
	})
	c.setState(StateReconnecting, delay, terr)
}

// teardown drops the current transport. Late events from it are ignored.
func (c *Channel) teardown() {
	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.Debug("close transport", "error", err)
		}
		c.client = nil
	}
	c.gen++
}

func (c *Channel) setState(to State, delay time.Duration, cause error) {
	from := c.state
	c.state = to
	id := string(c.cfg.ID)
	c.metrics.SetState(id, to.String(), allStateNames())

	switch to {
	case StateOpen:
		c.metrics.Connected(id)
		c.logger.Info("channel open", "endpoint", c.endpoint, "conn_id", c.client.ID())
	case StateReconnecting:
		c.metrics.ReconnectScheduled(id)
		c.logger.Info("reconnect scheduled", "attempt", c.attempt, "delay", delay)
	case StateFailed:
		c.metrics.Exhausted(id)
		c.logger.Error("channel failed", "error", cause)
	case StateClosed:
		c.logger.Info("channel closed", "from", from)
	default:
		c.logger.Debug("channel state", "from", from, "to", to)
	}

	if c.onTransition != nil {
		c.onTransition(Transition{
			Channel: c.cfg.ID,
			From:    from,
			To:      to,
			Attempt: c.attempt,
			Delay:   delay,
			Err:     cause,
			At:      c.now(),
		})
	}
}

func (c *Channel) publish() {
	s := Snapshot{
		ID:        c.cfg.ID,
		State:     c.state,
		StateName: c.state.String(),
		Attempt:   c.attempt,
		Queued:    c.pending.Len(),
		Endpoint:  c.endpoint,
		NextDelay: c.nextDelay,
		OpenedAt:  c.openedAt,
	}
	if c.client != nil {
		s.ConnID = c.client.ID()
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.state != StateOpen {
		s.OpenedAt = time.Time{}
	}

	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}
