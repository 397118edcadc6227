package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides. Each wins over the YAML file value.
const (
	EnvConfigPath         = "CONFIG_PATH"
	EnvDBConnection       = "DB_CONNECTION"
	EnvDefaultDailyQuota  = "DEFAULT_DAILY_QUOTA"
	EnvRedisAddr          = "REDIS_ADDR"
	EnvGeminiAPIKey       = "GEMINI_APIKEY"
	EnvGroqAPIKey         = "GROQ_APIKEY"
	EnvFluxEndpoint       = "FLUX_ENDPOINT"
	EnvMidJourneyEndpoint = "MIDJOURNEY_ENDPOINT"
	EnvWhisperEndpoint    = "WHISPER_ENDPOINT"
)

// DefaultDSN is the SQLite file used when no DSN is configured.
const DefaultDSN = "modelarena.db"

// Providers holds credentials and endpoints for the AI backends. A provider
// with an empty key or endpoint is skipped at bootstrap.
type Providers struct {
	GeminiAPIKey       string `yaml:"gemini-api-key"`
	GroqAPIKey         string `yaml:"groq-api-key"`
	FluxEndpoint       string `yaml:"flux-endpoint"`
	MidJourneyEndpoint string `yaml:"midjourney-endpoint"`
	WhisperEndpoint    string `yaml:"whisper-endpoint"`
}

// Config holds resolved application configuration values.
type Config struct {
	// DatabaseDSN selects the storage backend: a postgres:// URL or a
	// SQLite file path.
	DatabaseDSN string `yaml:"database-dsn"`

	// DefaultDailyQuota is the request budget granted to new users.
	DefaultDailyQuota int `yaml:"default-daily-quota"`

	// RedisAddr, when set, moves arena session state and rate limiting to
	// Redis so they survive process restarts.
	RedisAddr string `yaml:"redis-addr"`

	// RequestsPerSecond rate-limits each user at the API edge. Zero
	// disables the limiter.
	RequestsPerSecond int `yaml:"requests-per-second"`

	Providers Providers `yaml:"providers"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file and applies environment overrides. A
// missing file is not an error; the config then comes entirely from the
// environment and defaults.
func Load(configPath string) (Config, error) {
	var cfg Config

	raw, errRead := os.ReadFile(ResolveConfigPath(configPath))
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(raw, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("config: read %s: %w", configPath, errRead)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDBConnection)); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDefaultDailyQuota)); v != "" {
		if n, errParse := strconv.Atoi(v); errParse == nil && n > 0 {
			cfg.DefaultDailyQuota = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)); v != "" {
		cfg.Providers.GeminiAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGroqAPIKey)); v != "" {
		cfg.Providers.GroqAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFluxEndpoint)); v != "" {
		cfg.Providers.FluxEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMidJourneyEndpoint)); v != "" {
		cfg.Providers.MidJourneyEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWhisperEndpoint)); v != "" {
		cfg.Providers.WhisperEndpoint = v
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		cfg.DatabaseDSN = DefaultDSN
	}
	if cfg.DefaultDailyQuota <= 0 {
		cfg.DefaultDailyQuota = 20
	}
}
