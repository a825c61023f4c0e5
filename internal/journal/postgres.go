package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the channel_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS channel_events (
	event_id    UUID PRIMARY KEY,
	channel     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	attempt     INTEGER NOT NULL,
	delay_ms    BIGINT NOT NULL,
	error       TEXT,
	occurred_at TIMESTAMPTZ NOT NULL
)`

const insertEvent = `
	INSERT INTO channel_events (event_id, channel, kind, attempt, delay_ms, error, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (event_id) DO NOTHING`

// DB is the subset of *pgxpool.Pool the PostgreSQL reporter uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config configures a PGReporter.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // events held before Report starts dropping
}

// DefaultConfig returns default reporter settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		BufferSize:    1024,
	}
}

// Stats counts reporter activity.
type Stats struct {
	Inserts int64
	Dropped int64
	Errors  int64
	Flushes int64
}

// PGReporter writes events to PostgreSQL in batches.
type PGReporter struct {
	cfg    Config
	db     DB
	logger *slog.Logger

	input chan Event

	batch   []Event
	batchMu sync.Mutex
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPGReporter creates a PGReporter. Call Start before reporting.
func NewPGReporter(cfg Config, db DB, logger *slog.Logger) *PGReporter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &PGReporter{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "journal"),
		input:  make(chan Event, cfg.BufferSize),
		batch:  make([]Event, 0, cfg.BatchSize),
	}
}

// EnsureSchema creates the events table if needed.
func (r *PGReporter) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create channel_events: %w", err)
	}
	return nil
}

// Report buffers ev. It drops the event when the buffer is full.
func (r *PGReporter) Report(_ context.Context, ev Event) {
	select {
	case r.input <- ev:
	default:
		r.batchMu.Lock()
		r.stats.Dropped++
		r.batchMu.Unlock()
		r.logger.Warn("journal buffer full, dropping event", "channel", ev.Channel, "kind", string(ev.Kind))
	}
}

// Start begins consuming and flushing events.
func (r *PGReporter) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.consumeLoop()

	r.logger.Info("journal started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains buffered events and writes them out.
func (r *PGReporter) Stop(ctx context.Context) error {
	r.logger.Info("stopping journal")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("journal stop timed out")
		return nil
	}

	// Final drain and flush on the caller's context.
	for {
		select {
		case ev := <-r.input:
			r.add(ev)
			continue
		default:
		}
		break
	}
	r.flush(ctx)
	r.logger.Info("journal stopped")
	return nil
}

// Stats returns current counters.
func (r *PGReporter) Stats() Stats {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.stats
}

func (r *PGReporter) consumeLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.input:
			if r.add(ev) {
				r.flush(r.ctx)
			}
		case <-ticker.C:
			r.flush(r.ctx)
		}
	}
}

// add appends ev and reports whether the batch is full.
func (r *PGReporter) add(ev Event) bool {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	r.batch = append(r.batch, ev)
	return len(r.batch) >= r.cfg.BatchSize
}

func (r *PGReporter) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}
	batch := r.batch
	r.batch = make([]Event, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()
	inserted, err := r.batchInsert(ctx, batch)

	r.batchMu.Lock()
	r.stats.Inserts += int64(inserted)
	if err != nil {
		r.stats.Errors++
	} else {
		r.stats.Flushes++
	}
	r.batchMu.Unlock()

	if err != nil {
		r.logger.Error("journal insert failed", "error", err, "count", len(batch))
		return
	}
	r.logger.Debug("flushed journal", "count", len(batch), "duration", time.Since(start))
}

func (r *PGReporter) batchInsert(ctx context.Context, events []Event) (int, error) {
	batch := &pgx.Batch{}
	for _, ev := range events {
		var errText *string
		if ev.Error != "" {
			errText = &ev.Error
		}
		batch.Queue(insertEvent,
			ev.ID, ev.Channel, string(ev.Kind), ev.Attempt, ev.Delay.Milliseconds(), errText, ev.At)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range events {
		ct, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}
