package models

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	GreenAPI  GreenAPIConfig  `json:"greenApi"`
	Channels  []ChannelConfig `json:"channels"`
	Retry     RetryConfig     `json:"retry"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"logLevel"`
}

type ServerConfig struct {
	Port            int             `json:"port"`
	ReadTimeoutSec  int             `json:"readTimeoutSec"`
	WriteTimeoutSec int             `json:"writeTimeoutSec"`
	IdleTimeoutSec  int             `json:"idleTimeoutSec"`
	RateLimit       RateLimitConfig `json:"rateLimit"`
}

// RateLimitConfig bounds webhook traffic per client IP over a sliding window.
type RateLimitConfig struct {
	WindowMs    int `json:"windowMs"`
	MaxRequests int `json:"maxRequests"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type GreenAPIConfig struct {
	APIBaseURL          string `json:"apiBaseUrl"`
	TimeoutSec          int    `json:"timeoutSec"`
	PollIntervalSec     int    `json:"pollIntervalSec"`
	MaxDrainPerCycle    int    `json:"maxDrainPerCycle"`
	RecentWindowMinutes int    `json:"recentWindowMinutes"`
	SendRefreshDelayMs  int    `json:"sendRefreshDelayMs"`
}

// ChannelConfig binds one clinic tenant to one Green API instance.
type ChannelConfig struct {
	ClinicID   string `json:"clinicId"`
	InstanceID string `json:"instanceId"`
	APIToken   string `json:"apiToken"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}
