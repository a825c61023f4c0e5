package config

import "time"

// Config is the root configuration for a realtime client.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Identity  IdentityConfig  `yaml:"identity"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Transport TransportConfig `yaml:"transport"`
	Resync    ResyncConfig    `yaml:"resync"`
	Journal   JournalConfig   `yaml:"journal"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig locates the realtime server.
type ServerConfig struct {
	Host    string            `yaml:"host"`    // host[:port], no scheme
	Secure  bool              `yaml:"secure"`  // use wss
	Headers map[string]string `yaml:"headers"` // sent with every handshake, e.g. Cookie
}

// IdentityConfig identifies the connecting user.
type IdentityConfig struct {
	UserID string `yaml:"user_id"` // empty skips per-user channels
}

// ChannelsConfig selects which channels open.
type ChannelsConfig struct {
	Notifications ChannelConfig `yaml:"notifications"`
	Leaderboard   ChannelConfig `yaml:"leaderboard"`
	Presence      ChannelConfig `yaml:"presence"`
}

// ChannelConfig toggles one channel. A nil Enabled means enabled.
type ChannelConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// On reports whether the channel is enabled.
func (c ChannelConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// ReconnectConfig holds the linear backoff policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// TransportConfig holds websocket settings.
type TransportConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
	MailboxSize      int           `yaml:"mailbox_size"`
	QueueSize        int           `yaml:"queue_size"` // initial pending queue capacity; grows as needed
}

// ResyncConfig controls the periodic state resync.
type ResyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// JournalConfig holds the optional PostgreSQL event journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Postgres      DBConfig      `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the status server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
