package config

import "time"

// FeeddConfig is the root configuration for a feedd instance.
type FeeddConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this feedd.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds feed client settings.
type FeedConfig struct {
	BaseURL        string        `yaml:"base_url"`        // e.g. ws://localhost:8000/ws
	HistorySize    int           `yaml:"history_size"`    // Tick buffer capacity
	ReconnectDelay time.Duration `yaml:"reconnect_delay"` // Fixed delay, no backoff
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	MessageBuffer  int           `yaml:"message_buffer"`
	Symbols        []string      `yaml:"symbols"` // Subscribed at startup
}

// DBConfig holds the market feed database connection.
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

// RecorderConfig holds tick recorder settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueSize     int           `yaml:"queue_size"`
}

// ServerConfig holds the HTTP read surface settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}
