package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectBaseDelay   = 3 * time.Second
	DefaultReconnectMaxAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 60 * time.Second
	DefaultTransportBufferSize  = 256
	DefaultMailboxSize          = 64
	DefaultQueueSize            = 16
	DefaultResyncInterval       = 5 * time.Minute
	DefaultJournalBatchSize     = 100
	DefaultJournalFlushInterval = 5 * time.Second
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. Reconnect max_attempts 0 is kept when
// base_delay is set, so a config can disable retries.
func (c *Config) ApplyDefaults() {
	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
		if c.Reconnect.MaxAttempts == 0 {
			c.Reconnect.MaxAttempts = DefaultReconnectMaxAttempts
		}
	}

	// Transport defaults
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PingTimeout == 0 {
		c.Transport.PingTimeout = DefaultPingTimeout
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = DefaultTransportBufferSize
	}
	if c.Transport.MailboxSize == 0 {
		c.Transport.MailboxSize = DefaultMailboxSize
	}
	if c.Transport.QueueSize == 0 {
		c.Transport.QueueSize = DefaultQueueSize
	}

	// Resync defaults
	if c.Resync.Interval == 0 {
		c.Resync.Interval = DefaultResyncInterval
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlushInterval
	}
	applyDBDefaults(&c.Journal.Postgres)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
