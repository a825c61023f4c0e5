package journal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeResults struct {
	n   int
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

type fakeDB struct {
	mu      sync.Mutex
	execs   []string
	batches [][]*pgx.QueuedQuery
	err     error
}

func (db *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.execs = append(db.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), db.err
}

func (db *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.batches = append(db.batches, b.QueuedQueries)
	return &fakeResults{n: b.Len(), err: db.err}
}

func (db *fakeDB) rows() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, b := range db.batches {
		n += len(b)
	}
	return n
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent("presence", KindFailed, 5, errors.New("boom"))

	if ev.ID == uuid.Nil {
		t.Error("ID not set")
	}
	if ev.Channel != "presence" || ev.Kind != KindFailed || ev.Attempt != 5 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Error != "boom" {
		t.Errorf("Error = %q, want boom", ev.Error)
	}
	if ev.At.IsZero() {
		t.Error("At not set")
	}

	if got := NewEvent("x", KindOpened, 0, nil).Error; got != "" {
		t.Errorf("Error = %q, want empty", got)
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewLogReporter(logger)

	r.Report(context.Background(), NewEvent("leaderboard", KindFailed, 5, errors.New("refused")))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "channel=leaderboard", "kind=failed", "attempt=5", "error=refused"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

type recordingReporter struct {
	events []Event
}

func (r *recordingReporter) Report(_ context.Context, ev Event) {
	r.events = append(r.events, ev)
}

func TestMulti(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	m := Multi{a, nil, b}

	m.Report(context.Background(), NewEvent("notifications", KindOpened, 0, nil))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events = %d, %d, want 1, 1", len(a.events), len(b.events))
	}
}

func TestPGReporter_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	r := NewPGReporter(DefaultConfig(), db, nil)

	if err := r.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "channel_events") {
		t.Errorf("execs = %v", db.execs)
	}

	db.err = errors.New("permission denied")
	if err := r.EnsureSchema(context.Background()); err == nil {
		t.Error("EnsureSchema() should fail")
	}
}

func TestPGReporter_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	r := NewPGReporter(Config{BatchSize: 2, FlushInterval: time.Hour}, db, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	r.Report(context.Background(), NewEvent("presence", KindOpened, 0, nil))
	r.Report(context.Background(), NewEvent("presence", KindClosed, 0, nil))

	deadline := time.After(2 * time.Second)
	for db.rows() < 2 {
		select {
		case <-deadline:
			t.Fatalf("rows = %d, want 2", db.rows())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := r.Stats().Inserts; got != 2 {
		t.Errorf("Inserts = %d, want 2", got)
	}
}

func TestPGReporter_StopFlushesRemainder(t *testing.T) {
	db := &fakeDB{}
	r := NewPGReporter(Config{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ev := NewEvent("leaderboard", KindReconnectScheduled, 2, errors.New("reset"))
	ev.Delay = 6 * time.Second
	r.Report(context.Background(), ev)

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if db.rows() != 1 {
		t.Fatalf("rows = %d, want 1", db.rows())
	}
	args := db.batches[0][0].Arguments
	if args[1] != "leaderboard" || args[2] != "reconnect_scheduled" {
		t.Errorf("args = %v", args)
	}
	if args[4] != int64(6000) {
		t.Errorf("delay_ms = %v, want 6000", args[4])
	}
	if s, ok := args[5].(*string); !ok || *s != "reset" {
		t.Errorf("error arg = %v, want reset", args[5])
	}
}

func TestPGReporter_InsertError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	r := NewPGReporter(Config{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	r.Report(context.Background(), NewEvent("presence", KindFailed, 5, nil))
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	stats := r.Stats()
	if stats.Errors != 1 || stats.Inserts != 0 {
		t.Errorf("stats = %+v, want 1 error and 0 inserts", stats)
	}
}

func TestPGReporter_DropsWhenFull(t *testing.T) {
	r := NewPGReporter(Config{BufferSize: 1}, &fakeDB{}, nil)

	// Not started: nothing consumes the buffer.
	r.Report(context.Background(), NewEvent("a", KindOpened, 0, nil))
	r.Report(context.Background(), NewEvent("a", KindClosed, 0, nil))

	if got := r.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}
