package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-block/internal/block/domain"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log LogConfig `koanf:"log"`

	Account AccountConfig `koanf:"account"`

	// Timeout bounds each request to the account server when the caller
	// sets no deadline of its own.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	Screen ScreenConfig `koanf:"screen"`

	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// AccountConfig identifies the account and where its server-side state lives.
type AccountConfig struct {
	// JID is the account whose blocked contacts are managed.
	JID string `koanf:"jid" validate:"required,jid"`

	// State is the path of the bolt database holding the account's
	// privacy lists and native blocklist.
	State string `koanf:"state" validate:"required"`

	// Native advertises the native blocking feature on the local server.
	// When false the privacy list emulation is used.
	Native bool `koanf:"native"`
}

// ScreenConfig sizes the sender screening caches.
type ScreenConfig struct {
	CacheSize int     `koanf:"cache_size" validate:"gte=0"`
	FPRate    float64 `koanf:"fp_rate" validate:"gt=0,lt=1"`
}

// MetricsConfig controls Prometheus textfile export.
type MetricsConfig struct {
	// File, when set, receives operation counters in the Prometheus text
	// format after each command.
	File string `koanf:"file"`
}

// DEFAULT_APP_CONFIG holds the defaults applied before environment overrides.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:     "prod",
	Log:     LogConfig{Level: "info"},
	Account: AccountConfig{State: "/var/lib/rr-block/account.db"},
	Timeout: 5 * time.Second,
	Screen:  ScreenConfig{CacheSize: 1000, FPRate: 0.01},
}

// envKeys maps flattened BLOCK_* variable names to nested config paths.
var envKeys = map[string]string{
	"log_level":         "log.level",
	"account_jid":       "account.jid",
	"account_state":     "account.state",
	"account_native":    "account.native",
	"screen_cache_size": "screen.cache_size",
	"screen_fp_rate":    "screen.fp_rate",
	"metrics_file":      "metrics.file",
}

// validJID validates that the field holds a parseable XMPP address.
func validJID(fl validator.FieldLevel) bool {
	_, err := domain.ParseAddress(fl.Field().String())
	return err == nil
}

// envLoader loads environment variables with the prefix "BLOCK_".
// It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "BLOCK_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "BLOCK_"))
			if mapped, ok := envKeys[key]; ok {
				key = mapped
			}
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "jid" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("jid", validJID)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// AccountAddress returns the parsed account JID.
func (c *AppConfig) AccountAddress() (domain.Address, error) {
	return domain.ParseAddress(c.Account.JID)
}
