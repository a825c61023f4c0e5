package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/realtime-client/internal/config"
	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/database"
	"github.com/rickgao/realtime-client/internal/feed"
	"github.com/rickgao/realtime-client/internal/journal"
	"github.com/rickgao/realtime-client/internal/metrics"
	"github.com/rickgao/realtime-client/internal/poller"
	"github.com/rickgao/realtime-client/internal/reconnect"
	"github.com/rickgao/realtime-client/internal/status"
	"github.com/rickgao/realtime-client/internal/transport"
	"github.com/rickgao/realtime-client/internal/version"
	"github.com/rickgao/realtime-client/internal/view"
)

const shutdownTimeout = 10 * time.Second

func runCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the realtime server and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("user-id") {
				cfg.Identity.UserID = userID
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/realtime.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user-id", "", "override identity.user_id")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting realtime client",
		"version", version.Version,
		"commit", version.Commit,
		"server", cfg.Server.Host,
		"secure", cfg.Server.Secure,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.WithRegistry(registry))

	reporters := journal.Multi{journal.NewLogReporter(logger)}
	statusOpts := status.Options{
		Gatherer:    registry,
		MetricsPath: cfg.Metrics.Path,
		Logger:      logger,
	}

	var pgJournal *journal.PGReporter
	if cfg.Journal.Enabled {
		pool, err := database.Connect(ctx, cfg.Journal.Postgres)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		pgJournal = journal.NewPGReporter(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, pool, logger)
		if err := pgJournal.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := pgJournal.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		reporters = append(reporters, pgJournal)
		statusOpts.Journal = pool
	}

	board := view.NewBoard(view.WithLogger(logger))
	mgr := connection.NewManager(
		managerConfig(cfg),
		feed.Channels(board, logger),
		connection.WithDialer(transport.NewDialer(clientConfig(cfg), logger)),
		connection.WithManagerMetrics(m),
		connection.WithReporter(reporters),
		connection.WithLogger(logger),
	)

	statusOpts.Channels = mgr
	statusOpts.Board = board
	srv := status.NewServer(cfg.Metrics.Port, statusOpts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		if err := mgr.Start(gctx, cfg.Identity.UserID, predicates(cfg.Channels)); err != nil {
			return fmt.Errorf("start connection manager: %w", err)
		}

		var resync *poller.Poller
		if cfg.Resync.Enabled {
			resync = poller.New(poller.Config{Interval: cfg.Resync.Interval}, mgr, poller.DefaultRequests(), logger)
			if err := resync.Start(gctx); err != nil {
				return fmt.Errorf("start resync poller: %w", err)
			}
		}
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if resync != nil {
			if err := resync.Stop(shutdownCtx); err != nil {
				logger.Warn("resync poller stop", "error", err)
			}
		}
		return mgr.Stop(shutdownCtx)
	})

	logger.Info("realtime client running",
		"user_id", cfg.Identity.UserID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	err = g.Wait()

	if pgJournal != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		pgJournal.Stop(shutdownCtx)
	}

	logger.Info("realtime client stopped")
	return err
}

func managerConfig(cfg *config.Config) connection.ManagerConfig {
	return connection.ManagerConfig{
		Origin: transport.Origin{Host: cfg.Server.Host, Secure: cfg.Server.Secure},
		Policy: reconnect.Policy{
			BaseDelay:   cfg.Reconnect.BaseDelay,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		MailboxSize: cfg.Transport.MailboxSize,
		QueueSize:   cfg.Transport.QueueSize,
	}
}

func clientConfig(cfg *config.Config) transport.ClientConfig {
	header := make(http.Header, len(cfg.Server.Headers))
	for k, v := range cfg.Server.Headers {
		header.Set(k, v)
	}
	return transport.ClientConfig{
		Header:           header,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		PingTimeout:      cfg.Transport.PingTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		BufferSize:       cfg.Transport.BufferSize,
	}
}

func predicates(c config.ChannelsConfig) map[connection.ID]connection.Predicate {
	return map[connection.ID]connection.Predicate{
		connection.Notifications: connection.Enabled(c.Notifications.On()),
		connection.Leaderboard:   connection.Enabled(c.Leaderboard.On()),
		connection.Presence:      connection.Enabled(c.Presence.On()),
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}
