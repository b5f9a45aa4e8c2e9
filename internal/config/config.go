// Package config reads the session service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	AuthorityRemote = "remote"
	AuthorityLocal  = "local"

	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

type AppConfig struct {
	AuthorityMode    string        `validate:"oneof=remote local"`
	AuthorityBaseURL string        `validate:"omitempty,url"`
	AuthorityTimeout time.Duration `validate:"gt=0"`
	AuthorityRetry   int           `validate:"gte=0,lte=5"`
	AuthorityToken   string

	StoreBackend string `validate:"oneof=redis badger memory"`
	RedisURL     string `validate:"required_if=StoreBackend redis"`
	BadgerPath   string `validate:"required_if=StoreBackend badger"`

	// DatabaseURL enables the finished-game archive when set.
	DatabaseURL string

	SessionProfile string `validate:"required,max=64"`
	PlayMode       string `validate:"oneof=human_vs_human human_vs_ai"`
	HumanColor     string `validate:"oneof=white black"`
	EnableUndo     bool

	MessagesDir string
	FeedAddr    string `validate:"omitempty,hostname_port"`
	MetricsAddr string `validate:"omitempty,hostname_port"`
}

var validate = validator.New()

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		AuthorityMode:    AuthorityRemote,
		AuthorityTimeout: 5 * time.Second,
		AuthorityRetry:   2,
		StoreBackend:     BackendMemory,
		SessionProfile:   "default",
		PlayMode:         "human_vs_ai",
		HumanColor:       "white",
		EnableUndo:       true,
	}

	if v := env("AUTHORITY_MODE"); v != "" {
		cfg.AuthorityMode = strings.ToLower(v)
	}
	cfg.AuthorityBaseURL = strings.TrimRight(env("AUTHORITY_BASE_URL"), "/")
	cfg.AuthorityToken = env("AUTHORITY_TOKEN")
	if v := env("AUTHORITY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuthorityTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := env("AUTHORITY_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AuthorityRetry = n
		}
	}

	if v := env("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.BadgerPath = env("BADGER_PATH")
	cfg.DatabaseURL = env("DATABASE_URL")

	if v := env("SESSION_PROFILE"); v != "" {
		cfg.SessionProfile = v
	}
	if v := env("PLAY_MODE"); v != "" {
		cfg.PlayMode = strings.ToLower(v)
	}
	if v := env("HUMAN_COLOR"); v != "" {
		cfg.HumanColor = strings.ToLower(v)
	}
	if v := env("ENABLE_UNDO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableUndo = b
		}
	}

	cfg.MessagesDir = env("MESSAGES_DIR")
	cfg.FeedAddr = env("FEED_ADDR")
	cfg.MetricsAddr = env("METRICS_ADDR")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.AuthorityMode == AuthorityRemote && c.AuthorityBaseURL == "" {
		return errors.New("AUTHORITY_BASE_URL is required")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

func env(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}
