// Package config loads the server's settings.
//
// Settings are layered, later layers winning:
//
//	built-in defaults -> optional YAML file -> environment variables
//
// The YAML file is found through CONFIG_PATH, then config.yaml or config.yml
// in the working directory. Keys in the file use the koanf tags below, for
// example:
//
//	server:
//	  port: 8080
//	spoonacular:
//	  api_key: "..."
//	recommend:
//	  source_timeout: 5s
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/piecemeal/internal/validation"
)

// Config is the full server configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Log         LogConfig         `koanf:"log"`
	Auth        AuthConfig        `koanf:"auth"`
	Spoonacular SpoonacularConfig `koanf:"spoonacular"`
	Recommend   RecommendConfig   `koanf:"recommend"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RateLimitRequests per RateLimitWindow per client IP on /api.
	// Zero disables the limit.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"   validate:"gt=0"`

	// CookieSecure marks the session cookie Secure. Turn it on behind TLS.
	CookieSecure bool `koanf:"cookie_secure"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// SlogLevel maps Level onto slog. Unknown values fall back to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"  validate:"required,min=16"`
	TokenTTL   time.Duration `koanf:"token_ttl"   validate:"gt=0"`
	BcryptCost int           `koanf:"bcrypt_cost" validate:"min=4,max=31"`

	// Google login is enabled when both the client id and secret are set.
	GoogleClientID     string `koanf:"google_client_id"`
	GoogleClientSecret string `koanf:"google_client_secret"`
	GoogleCallbackURL  string `koanf:"google_callback_url"`
}

// GoogleEnabled reports whether the Google login routes should be mounted.
func (a AuthConfig) GoogleEnabled() bool {
	return a.GoogleClientID != "" && a.GoogleClientSecret != ""
}

// SpoonacularConfig configures the recipe provider. Without an API key the
// server runs from the local catalog only.
type SpoonacularConfig struct {
	APIKey              string        `koanf:"api_key"`
	BaseURL             string        `koanf:"base_url"              validate:"omitempty,url"`
	Timeout             time.Duration `koanf:"timeout"               validate:"gt=0"`
	RequestsPerSecond   float64       `koanf:"requests_per_second"   validate:"gt=0"`
	Burst               int           `koanf:"burst"                 validate:"min=1"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"  validate:"min=1"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"      validate:"gt=0"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"       validate:"gt=0"`
}

func (s SpoonacularConfig) Enabled() bool { return s.APIKey != "" }

type RecommendConfig struct {
	Dedupe               bool          `koanf:"dedupe"`
	LimitPerFriend       int           `koanf:"limit_per_friend"       validate:"min=1"`
	FriendLimit          int           `koanf:"friend_limit"           validate:"min=1"`
	MaxConcurrentSources int           `koanf:"max_concurrent_sources" validate:"min=1"`
	SourceTimeout        time.Duration `koanf:"source_timeout"         validate:"min=0"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			Path: "data/piecemeal.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 12,
		},
		Spoonacular: SpoonacularConfig{
			Timeout:             10 * time.Second,
			RequestsPerSecond:   5,
			Burst:               10,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
		},
		Recommend: RecommendConfig{
			Dedupe:               true,
			LimitPerFriend:       5,
			FriendLimit:          5,
			MaxConcurrentSources: 5,
			SourceTimeout:        8 * time.Second,
		},
	}
}

// Validate checks every field rule and the cross-field ones.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.Auth.GoogleEnabled() && c.Auth.GoogleCallbackURL == "" {
		return fmt.Errorf("auth.google_callback_url is required when Google login is enabled")
	}
	return nil
}
