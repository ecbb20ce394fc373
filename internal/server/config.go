// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the AniConnect service.
package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Tyrowin/aniconnect/internal/chat"
	"github.com/Tyrowin/aniconnect/internal/jobs"
)

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST"           envDefault:"5"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// ChatConfig holds the tunables of the chat core.
type ChatConfig struct {
	MessageLogCap     int           `env:"MESSAGE_LOG_CAP"     envDefault:"500"`
	XPPerMessage      int           `env:"XP_PER_MESSAGE"      envDefault:"10"`
	SendLimitBurst    int           `env:"SEND_LIMIT_BURST"    envDefault:"3"`
	SendLimitInterval time.Duration `env:"SEND_LIMIT_INTERVAL" envDefault:"5s"`
	BlockedWords      []string      `env:"BLOCKED_WORDS"       envDefault:"spam,toxic,hate" envSeparator:","`
	// ModeratorKeyHash is a bcrypt hash; empty trusts the role claimed at login.
	ModeratorKeyHash string `env:"MODERATOR_KEY_HASH"`
	SweepSchedule    string `env:"SWEEP_SCHEDULE" envDefault:"0 * * * * *"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `env:"SERVER_PORT"      envDefault:":8080"`
	Environment     string          `env:"APP_ENV"          envDefault:"development"`
	AllowedOrigins  []string        `env:"ALLOWED_ORIGINS"  envDefault:"http://localhost:8080" envSeparator:","`
	MaxMessageSize  int64           `env:"MAX_MESSAGE_SIZE" envDefault:"65536"`
	ShutdownTimeout time.Duration   `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RateLimit       RateLimitConfig
	Chat            ChatConfig
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port:            ":8080",
		Environment:     "development",
		AllowedOrigins:  []string{"http://localhost:8080"},
		MaxMessageSize:  65536,
		ShutdownTimeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Chat: ChatConfig{
			MessageLogCap:     chat.DefaultLogCap,
			XPPerMessage:      chat.DefaultXPPerMessage,
			SendLimitBurst:    3,
			SendLimitInterval: 5 * time.Second,
			BlockedWords:      append([]string(nil), chat.DefaultBlockedWords...),
			SweepSchedule:     jobs.DefaultSweepSchedule,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.Environment == "" {
		cfg.Environment = def.Environment
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.Chat.MessageLogCap <= 0 {
		cfg.Chat.MessageLogCap = def.Chat.MessageLogCap
	}
	if cfg.Chat.XPPerMessage <= 0 {
		cfg.Chat.XPPerMessage = def.Chat.XPPerMessage
	}
	if cfg.Chat.SendLimitBurst <= 0 {
		cfg.Chat.SendLimitBurst = def.Chat.SendLimitBurst
	}
	if cfg.Chat.SendLimitInterval <= 0 {
		cfg.Chat.SendLimitInterval = def.Chat.SendLimitInterval
	}
	if cfg.Chat.SweepSchedule == "" {
		cfg.Chat.SweepSchedule = def.Chat.SweepSchedule
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) Config {
	if cfg == nil {
		return sanitizeConfig(defaultConfig())
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitized.Chat.BlockedWords = append([]string(nil), cfg.Chat.BlockedWords...)
	return sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.Chat.BlockedWords = append([]string(nil), cfg.Chat.BlockedWords...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables keep their defaults; malformed ones are reported.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
