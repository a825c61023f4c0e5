package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if strings.Contains(c.Server.Host, "://") {
		return fmt.Errorf("server.host must not include a scheme, got %q", c.Server.Host)
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must be >= 0")
	}

	if c.Transport.HandshakeTimeout <= 0 {
		return errors.New("transport.handshake_timeout must be > 0")
	}
	if c.Transport.PingInterval < 0 {
		return errors.New("transport.ping_interval must be >= 0")
	}
	if c.Transport.PingInterval > 0 && c.Transport.PingTimeout <= c.Transport.PingInterval {
		return fmt.Errorf("transport.ping_timeout (%s) must exceed ping_interval (%s)",
			c.Transport.PingTimeout, c.Transport.PingInterval)
	}
	if c.Transport.BufferSize < 1 {
		return errors.New("transport.buffer_size must be >= 1")
	}
	if c.Transport.MailboxSize < 1 {
		return errors.New("transport.mailbox_size must be >= 1")
	}
	if c.Transport.QueueSize < 1 {
		return errors.New("transport.queue_size must be >= 1")
	}

	if c.Resync.Enabled && c.Resync.Interval < time.Second {
		return fmt.Errorf("resync.interval must be >= 1s, got %s", c.Resync.Interval)
	}

	if c.Journal.Enabled {
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if err := c.Journal.Postgres.validate("journal.postgres"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// ParseLevel converts a log.level value.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
