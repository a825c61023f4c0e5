package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/realtime-client/internal/config"
	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/feed"
	"github.com/rickgao/realtime-client/internal/model"
	"github.com/rickgao/realtime-client/internal/transport"
)

func tailCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		verbose    bool
		statsEvery time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream rendered channel payloads to stdout",
		Long: `tail opens the enabled channels and prints every rendered payload, one
line per payload. Logs go to stderr so stdout stays pipeable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("user-id") {
				cfg.Identity.UserID = userID
			}
			return tail(cmd.Context(), cfg, os.Stdout, verbose, statsEvery)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/realtime.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user-id", "", "override identity.user_id")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print full payloads as indented JSON")
	cmd.Flags().DurationVar(&statsEvery, "stats", 10*time.Second, "channel stats interval (0 disables)")

	return cmd
}

func tail(ctx context.Context, cfg *config.Config, out io.Writer, verbose bool, statsEvery time.Duration) error {
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := &printer{w: out, verbose: verbose}
	mgr := connection.NewManager(
		managerConfig(cfg),
		feed.Channels(p, logger),
		connection.WithDialer(transport.NewDialer(clientConfig(cfg), logger)),
		connection.WithLogger(logger),
	)

	if err := mgr.Start(ctx, cfg.Identity.UserID, predicates(cfg.Channels)); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}
	logger.Info("streaming started - press Ctrl+C to stop")

	if statsEvery > 0 {
		go logStats(ctx, mgr, statsEvery, logger)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return mgr.Stop(shutdownCtx)
}

func logStats(ctx context.Context, mgr connection.Manager, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := mgr.Stats()
			logger.Info("stats",
				"active", stats.Active,
				"open", stats.Open,
				"failed", stats.Failed,
				"exhausted", stats.Exhausted,
			)
		}
	}
}

// printer is a feed.Sink writing one line per rendered payload.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func (p *printer) Render(tag string, payload any) {
	line := p.format(tag, payload)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

func (p *printer) format(tag string, payload any) string {
	if p.verbose {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Sprintf("[%s] <unencodable: %v>", tag, err)
		}
		return fmt.Sprintf("[%s] %s", tag, data)
	}

	switch v := payload.(type) {
	case model.Notification:
		return fmt.Sprintf("[%s] kind=%s message=%q", tag, v.Kind, v.Message)
	case []model.PlayerRow:
		top := "-"
		if len(v) > 0 {
			top = fmt.Sprintf("%s(lvl %d)", v[0].Username, v[0].Level)
		}
		return fmt.Sprintf("[%s] rows=%d top=%s", tag, len(v), top)
	case []model.UserSummary:
		return fmt.Sprintf("[%s] users=%d", tag, len(v))
	case model.UserStatus:
		return fmt.Sprintf("[%s] user=%s status=%s", tag, v.UserID, v.Status)
	default:
		data, _ := json.Marshal(payload)
		return fmt.Sprintf("[%s] %s", tag, data)
	}
}
