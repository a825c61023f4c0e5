package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/model"
)

// Target is the part of the connection manager the poller drives.
type Target interface {
	Snapshots() []connection.Snapshot
	Enqueue(id connection.ID, msg any) error
}

// Request is one resync message for one channel.
type Request struct {
	Channel connection.ID
	Message any
}

// DefaultRequests asks for the leaderboard and the online list.
func DefaultRequests() []Request {
	return []Request{
		{Channel: connection.Leaderboard, Message: model.RefreshLeaderboard},
		{Channel: connection.Presence, Message: model.GetOnlineUsers},
	}
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Resync interval (default: 5m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
	}
}

// Stats counts resync requests.
type Stats struct {
	Cycles  int64
	Sent    int64
	Skipped int64 // channel inactive or not open
	Errors  int64
}

// Poller periodically enqueues resync requests.
type Poller struct {
	cfg      Config
	target   Target
	requests []Request
	logger   *slog.Logger

	cycles, sent, skipped, errs atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, target Target, requests []Request, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:      cfg,
		target:   target,
		requests: requests,
		logger:   logger.With("component", "poller"),
	}
}

// Start begins the resync loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("resync poller started",
		"interval", p.cfg.Interval,
		"requests", len(p.requests),
	)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("resync poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:  p.cycles.Load(),
		Sent:    p.sent.Load(),
		Skipped: p.skipped.Load(),
		Errors:  p.errs.Load(),
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll enqueues every request whose channel is open.
func (p *Poller) pollAll() {
	p.cycles.Add(1)

	open := make(map[connection.ID]bool)
	for _, s := range p.target.Snapshots() {
		open[s.ID] = s.State == connection.StateOpen
	}

	var sent, skipped int
	for _, req := range p.requests {
		if !open[req.Channel] {
			skipped++
			p.skipped.Add(1)
			continue
		}
		err := p.target.Enqueue(req.Channel, req.Message)
		switch {
		case err == nil:
			sent++
			p.sent.Add(1)
		case errors.Is(err, connection.ErrUnknownChannel), errors.Is(err, connection.ErrChannelClosed):
			skipped++
			p.skipped.Add(1)
		default:
			p.errs.Add(1)
			p.logger.Warn("failed to enqueue resync", "channel", string(req.Channel), "error", err)
		}
	}

	p.logger.Debug("resync cycle complete", "sent", sent, "skipped", skipped)
}
