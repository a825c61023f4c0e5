package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/realtime-client/internal/transport"
)

var errDialRefused = errors.New("connection refused")

// fakeClient is an in-memory transport.Client.
type fakeClient struct {
	id string

	mu       sync.Mutex
	sent     []string
	failSend int // fail the nth send (1-based); 0 never
	closed   bool

	msgs chan transport.Frame
	errs chan error
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{
		id:   id,
		msgs: make(chan transport.Frame, 16),
		errs: make(chan error, 1),
	}
}

func (f *fakeClient) Connect(context.Context) error { return nil }

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return transport.ErrNotConnected
	}
	if f.failSend > 0 && len(f.sent)+1 == f.failSend {
		f.failSend = 0
		return errors.New("broken pipe")
	}
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeClient) Messages() <-chan transport.Frame { return f.msgs }
func (f *fakeClient) Errors() <-chan error             { return f.errs }
func (f *fakeClient) ID() string                       { return f.id }

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeClient) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// receive pushes an inbound text frame.
func (f *fakeClient) receive(data string) {
	f.msgs <- transport.Frame{Data: []byte(data), ReceivedAt: time.Now()}
}

// drop simulates the server going away.
func (f *fakeClient) drop() {
	f.errs <- errors.New("connection reset by peer")
}

// fakeDialer hands out clients per dial. With fail set every dial fails.
type fakeDialer struct {
	mu      sync.Mutex
	urls    []string
	clients []*fakeClient
	fail    map[string]bool // by url
	failAll bool
	gate    chan struct{} // when set, dials block until it closes
	prepare func(*fakeClient)
}

func (d *fakeDialer) Dial(_ context.Context, url string) (transport.Client, error) {
	if d.gate != nil {
		<-d.gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.failAll || d.fail[url] {
		return nil, errDialRefused
	}
	c := newFakeClient(fmt.Sprintf("conn-%d", len(d.clients)+1))
	if d.prepare != nil {
		d.prepare(c)
	}
	d.clients = append(d.clients, c)
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) Client(i int) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.clients) {
		return nil
	}
	return d.clients[i]
}

// fakeTimers records scheduled reconnect delays instead of sleeping.
type fakeTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (f *fakeTimers) after(d time.Duration, fn func()) stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fn: fn}
	f.delays = append(f.delays, d)
	f.timers = append(f.timers, t)
	return t
}

// fireLast runs the most recent timer callback.
func (f *fakeTimers) fireLast() {
	f.mu.Lock()
	t := f.timers[len(f.timers)-1]
	f.mu.Unlock()
	t.fn()
}

func (f *fakeTimers) total() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum time.Duration
	for _, d := range f.delays {
		sum += d
	}
	return sum
}

// newTestChannel builds a channel whose loop the test drives with step.
func newTestChannel(t *testing.T, cfg ChannelConfig, d *fakeDialer, opts ...ChannelOption) (*Channel, *fakeTimers) {
	t.Helper()
	if cfg.ID == "" {
		cfg.ID = Leaderboard
	}
	if cfg.Endpoint == nil {
		cfg.Endpoint = func(identity string) string {
			return transport.Endpoint(transport.Origin{Host: "example.test"}, string(cfg.ID), identity)
		}
	}
	cfg.Dial = d.Dial

	timers := &fakeTimers{}
	c := newChannel(cfg, nil, nil, opts...)
	c.after = timers.after
	return c, timers
}

// step handles the next event in the channel's mailbox.
func step(t *testing.T, c *Channel) event {
	t.Helper()
	select {
	case ev := <-c.events:
		c.handle(ev)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event, state %s", c.state)
	}
	return nil
}

// enqueue calls EnqueueRaw from another goroutine, handles the resulting
// event and returns EnqueueRaw's result.
func enqueue(t *testing.T, c *Channel, frame string) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- c.EnqueueRaw([]byte(frame)) }()
	step(t, c)
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("EnqueueRaw did not return")
	}
	return nil
}

// waitFor polls cond until it holds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
