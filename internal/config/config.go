package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	// Channel credentials are optional: an unset channel is disabled for
	// this process without affecting the others.
	TelegramBotToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL    string `env:"TELEGRAM_API_URL,default=https://api.telegram.org"`
	ZAPIInstanceID    string `env:"ZAPI_INSTANCE_ID"`
	ZAPIInstanceToken string `env:"ZAPI_INSTANCE_TOKEN"`
	ZAPIClientToken   string `env:"ZAPI_CLIENT_TOKEN"`
	ZAPIBaseURL       string `env:"ZAPI_BASE_URL,default=https://api.z-api.io"`

	WorkerCount         int    `env:"WORKER_COUNT,default=4"`
	PollIntervalSeconds int    `env:"POLL_INTERVAL_SECONDS,default=30"`
	ClaimLeaseSeconds   int    `env:"CLAIM_LEASE_SECONDS,default=300"`
	MaxAttempts         int    `env:"MAX_ATTEMPTS,default=5"`
	RateLimitPerSec     int    `env:"RATE_LIMIT_PER_SEC,default=25"`
	APIPort             int    `env:"API_PORT,default=8080"`
	MetricsPort         int    `env:"METRICS_PORT,default=9091"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validateChannels(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateChannels rejects half-configured channels. A fully absent channel
// is fine; missing one of three Z-API values is an operator mistake.
func (c *Config) validateChannels() error {
	zapiValues := []string{c.ZAPIInstanceID, c.ZAPIInstanceToken, c.ZAPIClientToken}
	anySet := false
	allSet := true
	for _, value := range zapiValues {
		if strings.TrimSpace(value) == "" {
			allSet = false
		} else {
			anySet = true
		}
	}
	if anySet && !allSet {
		return fmt.Errorf("partial z-api configuration: ZAPI_INSTANCE_ID, ZAPI_INSTANCE_TOKEN, and ZAPI_CLIENT_TOKEN must all be set")
	}

	if !c.TelegramEnabled() && !c.WhatsAppEnabled() {
		return fmt.Errorf("no channel configured: set TELEGRAM_BOT_TOKEN and/or the ZAPI_* variables")
	}

	return nil
}

func (c *Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.TelegramBotToken) != ""
}

func (c *Config) WhatsAppEnabled() bool {
	return strings.TrimSpace(c.ZAPIInstanceID) != "" &&
		strings.TrimSpace(c.ZAPIInstanceToken) != "" &&
		strings.TrimSpace(c.ZAPIClientToken) != ""
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) ClaimLease() time.Duration {
	return time.Duration(c.ClaimLeaseSeconds) * time.Second
}
