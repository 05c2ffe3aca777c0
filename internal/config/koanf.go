package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// envMappings maps environment variable names (lowercased) to config keys.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"server_port":                "server.port",
	"server_host":                "server.host",
	"server_read_timeout":        "server.read_timeout",
	"server_write_timeout":       "server.write_timeout",
	"server_idle_timeout":        "server.idle_timeout",
	"server_shutdown_timeout":    "server.shutdown_timeout",
	"rate_limit_requests":        "server.rate_limit_requests",
	"rate_limit_window":          "server.rate_limit_window",
	"cookie_secure":              "server.cookie_secure",
	"database_path":              "database.path",
	"log_level":                  "log.level",
	"log_format":                 "log.format",
	"jwt_secret":                 "auth.jwt_secret",
	"token_ttl":                  "auth.token_ttl",
	"bcrypt_cost":                "auth.bcrypt_cost",
	"google_client_id":           "auth.google_client_id",
	"google_client_secret":       "auth.google_client_secret",
	"google_callback_url":        "auth.google_callback_url",
	"spoonacular_api_key":        "spoonacular.api_key",
	"spoonacular_base_url":       "spoonacular.base_url",
	"spoonacular_timeout":        "spoonacular.timeout",
	"spoonacular_rps":            "spoonacular.requests_per_second",
	"spoonacular_burst":          "spoonacular.burst",
	"recommend_dedupe":           "recommend.dedupe",
	"recommend_limit_per_friend": "recommend.limit_per_friend",
	"recommend_friend_limit":     "recommend.friend_limit",
	"recommend_max_concurrent":   "recommend.max_concurrent_sources",
	"recommend_source_timeout":   "recommend.source_timeout",

	// Older deployments set these.
	"port":    "server.port",
	"db_path": "database.path",
}

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform returns "" for variables outside envMappings, which makes the
// env provider skip them.
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}
