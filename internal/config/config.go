// Package config loads bot settings from an optional config file and
// APPROVAL_* environment variables.
//
// Nested keys map to environment variables by upper-casing and replacing
// dots with underscores, so store.backend is read from APPROVAL_STORE_BACKEND.
// List values such as admin_ids accept a comma-separated string in the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "APPROVAL"

// Update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendDynamo = "dynamo"
	BackendRedis  = "redis"
)

type Config struct {
	BotToken      string `mapstructure:"bot_token" validate:"required_without=BotTokenParam"`
	BotTokenParam string `mapstructure:"bot_token_param"`

	MainChatID       int64   `mapstructure:"main_chat_id" validate:"required"`
	ModerationChatID int64   `mapstructure:"moderation_chat_id" validate:"required,nefield=MainChatID"`
	AdminIDs         []int64 `mapstructure:"admin_ids"`

	QuietPeriod      time.Duration `mapstructure:"quiet_period" validate:"gt=0"`
	NotifyRejections bool          `mapstructure:"notify_rejections"`
	OutcomeTimeout   time.Duration `mapstructure:"outcome_timeout" validate:"gt=0"`

	Mode               string `mapstructure:"mode" validate:"oneof=polling webhook"`
	ListenAddr         string `mapstructure:"listen_addr" validate:"required_if=Mode webhook"`
	WebhookURL         string `mapstructure:"webhook_url" validate:"required_if=Mode webhook,omitempty,url"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	WebhookSecretParam string `mapstructure:"webhook_secret_param"`

	SendRate  float64 `mapstructure:"send_rate" validate:"gte=0"`
	SendBurst int     `mapstructure:"send_burst" validate:"gte=0"`

	Store    StoreConfig   `mapstructure:"store"`
	Outcomes OutcomeConfig `mapstructure:"outcomes"`
}

type StoreConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=memory sqlite dynamo redis"`
	SQLitePath  string        `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	DynamoTable string        `mapstructure:"dynamo_table" validate:"required_if=Backend dynamo"`
	RedisURL    string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	TTL         time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// OutcomeConfig enables the optional outcome sinks. Empty values disable them.
type OutcomeConfig struct {
	EventBus      string `mapstructure:"event_bus"`
	ArchiveBucket string `mapstructure:"archive_bucket"`
	ArchivePrefix string `mapstructure:"archive_prefix"`
}

var defaults = map[string]any{
	"bot_token":               "",
	"bot_token_param":         "",
	"main_chat_id":            0,
	"moderation_chat_id":      0,
	"admin_ids":               []int64{},
	"quiet_period":            5 * time.Second,
	"notify_rejections":       true,
	"outcome_timeout":         10 * time.Second,
	"mode":                    ModePolling,
	"listen_addr":             ":8080",
	"webhook_url":             "",
	"webhook_secret":          "",
	"webhook_secret_param":    "",
	"send_rate":               1.0,
	"send_burst":              20,
	"store.backend":           BackendSQLite,
	"store.sqlite_path":       "approvals.db",
	"store.dynamo_table":      "",
	"store.redis_url":         "",
	"store.redis_prefix":      "approval/",
	"store.ttl":               7 * 24 * time.Hour,
	"outcomes.event_bus":      "",
	"outcomes.archive_bucket": "",
	"outcomes.archive_prefix": "outcomes/",
}

// New returns a viper instance with defaults registered and the environment
// bound. Every key needs a default so Unmarshal sees env-only values.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if non-empty) into v, decodes the result and validates it.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
