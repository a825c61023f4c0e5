package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/model"
)

type fakeTarget struct {
	mu       sync.Mutex
	snaps    []connection.Snapshot
	enqueued map[connection.ID][]any
	err      error
}

func (f *fakeTarget) Snapshots() []connection.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps
}

func (f *fakeTarget) Enqueue(id connection.ID, msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.enqueued == nil {
		f.enqueued = make(map[connection.ID][]any)
	}
	f.enqueued[id] = append(f.enqueued[id], msg)
	return nil
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, msgs := range f.enqueued {
		n += len(msgs)
	}
	return n
}

func TestPollAll_OnlyOpenChannels(t *testing.T) {
	target := &fakeTarget{snaps: []connection.Snapshot{
		{ID: connection.Leaderboard, State: connection.StateOpen},
		{ID: connection.Presence, State: connection.StateReconnecting},
	}}
	p := New(DefaultConfig(), target, DefaultRequests(), nil)

	p.pollAll()

	if got := target.enqueued[connection.Leaderboard]; len(got) != 1 || got[0] != model.RefreshLeaderboard {
		t.Errorf("leaderboard enqueued = %v, want [refresh]", got)
	}
	if got := target.enqueued[connection.Presence]; len(got) != 0 {
		t.Errorf("presence enqueued = %v, want none", got)
	}

	stats := p.Stats()
	if stats.Cycles != 1 || stats.Sent != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPollAll_MissingChannelSkipped(t *testing.T) {
	target := &fakeTarget{}
	p := New(DefaultConfig(), target, DefaultRequests(), nil)

	p.pollAll()

	if target.count() != 0 {
		t.Errorf("enqueued = %v, want none", target.enqueued)
	}
	if got := p.Stats().Skipped; got != 2 {
		t.Errorf("Skipped = %d, want 2", got)
	}
}

func TestPollAll_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantSkipped int64
		wantErrors  int64
	}{
		{"closed during cycle", connection.ErrChannelClosed, 1, 0},
		{"stopped during cycle", connection.ErrUnknownChannel, 1, 0},
		{"encode failure", errors.New("encode message"), 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{
				snaps: []connection.Snapshot{{ID: connection.Leaderboard, State: connection.StateOpen}},
				err:   tt.err,
			}
			p := New(DefaultConfig(), target, DefaultRequests()[:1], nil)

			p.pollAll()

			stats := p.Stats()
			if stats.Skipped != tt.wantSkipped || stats.Errors != tt.wantErrors {
				t.Errorf("stats = %+v", stats)
			}
		})
	}
}

func TestPoller_Lifecycle(t *testing.T) {
	target := &fakeTarget{snaps: []connection.Snapshot{
		{ID: connection.Leaderboard, State: connection.StateOpen},
		{ID: connection.Presence, State: connection.StateOpen},
	}}
	p := New(Config{Interval: 10 * time.Millisecond}, target, DefaultRequests(), nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for target.count() < 4 {
		select {
		case <-deadline:
			t.Fatalf("enqueued = %d, want at least 4", target.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	after := target.count()
	time.Sleep(30 * time.Millisecond)
	if target.count() != after {
		t.Error("poller kept enqueueing after Stop")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(Config{}, &fakeTarget{}, nil, nil)
	if p.cfg.Interval != DefaultConfig().Interval {
		t.Errorf("Interval = %v, want %v", p.cfg.Interval, DefaultConfig().Interval)
	}
}
