package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/spotmyartist/internal/constants"
)

type Config struct {
	Server   ServerConfig
	Groupie  GroupieConfig
	Geocoder GeocoderConfig
	Map      MapConfig
	Filter   FilterConfig
	Redis    RedisConfig
	Discogs  DiscogsConfig
	Wiki     WikiConfig
	Albums   AlbumsConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Addr            string
	StaticDir       string
	ShutdownTimeout time.Duration
}

type GroupieConfig struct {
	BaseURL string
	Timeout time.Duration
}

type GeocoderConfig struct {
	BaseURL      string
	UserAgent    string
	CountryCodes []string
	Timeout      time.Duration
	Disabled     bool
}

type MapConfig struct {
	StepDelay time.Duration
}

type FilterConfig struct {
	DebounceDelay time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type DiscogsConfig struct {
	BaseURL string
	Token   string
}

type WikiConfig struct {
	BaseURL string
}

type AlbumsConfig struct {
	File string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			StaticDir:       getEnv("STATIC_DIR", "./web/static"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT_SECONDS", 10, time.Second),
		},
		Groupie: GroupieConfig{
			BaseURL: strings.TrimRight(getEnv("GROUPIE_BASE_URL", constants.APIConfig.GroupieBaseURL), "/"),
			Timeout: getEnvDuration("GROUPIE_TIMEOUT_SECONDS", int(constants.APIConfig.GroupieTimeout/time.Second), time.Second),
		},
		Geocoder: GeocoderConfig{
			BaseURL:      strings.TrimRight(getEnv("GEOCODER_BASE_URL", constants.GeocoderConfig.BaseURL), "/"),
			UserAgent:    getEnv("GEOCODER_USER_AGENT", constants.GeocoderConfig.UserAgent),
			CountryCodes: parseCommaSeparated(getEnv("GEOCODER_COUNTRY_CODES", strings.Join(constants.GeocoderConfig.CountryCodes, ","))),
			Timeout:      getEnvDuration("GEOCODER_TIMEOUT_MS", int(constants.GeocoderConfig.RequestTimeout/time.Millisecond), time.Millisecond),
			Disabled:     getEnvBool("GEOCODER_DISABLED", false),
		},
		Map: MapConfig{
			StepDelay: getEnvDuration("MAP_STEP_DELAY_MS", int(constants.MapConfig.StepDelay/time.Millisecond), time.Millisecond),
		},
		Filter: FilterConfig{
			DebounceDelay: getEnvDuration("DEBOUNCE_MS", int(constants.FilterConfig.DebounceDelay/time.Millisecond), time.Millisecond),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("GEOCODE_CACHE_TTL_MINUTES", int(constants.CacheTTL.GeocodeHit/time.Minute), time.Minute),
		},
		Discogs: DiscogsConfig{
			BaseURL: strings.TrimRight(getEnv("DISCOGS_BASE_URL", constants.APIConfig.DiscogsBaseURL), "/"),
			Token:   getEnv("DISCOGS_TOKEN", ""),
		},
		Wiki: WikiConfig{
			BaseURL: strings.TrimRight(getEnv("WIKI_BASE_URL", constants.APIConfig.WikiBaseURL), "/"),
		},
		Albums: AlbumsConfig{
			File: getEnv("ALBUMS_FILE", "./data/albums_api.json"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("SERVER_ADDR is required")
	}
	if err := requireURL("GROUPIE_BASE_URL", c.Groupie.BaseURL); err != nil {
		return err
	}
	if !c.Geocoder.Disabled {
		if err := requireURL("GEOCODER_BASE_URL", c.Geocoder.BaseURL); err != nil {
			return err
		}
		if c.Geocoder.UserAgent == "" {
			return fmt.Errorf("GEOCODER_USER_AGENT is required when the geocoder is enabled")
		}
	}
	if c.Geocoder.Timeout <= 0 {
		return fmt.Errorf("GEOCODER_TIMEOUT_MS must be positive")
	}
	if c.Filter.DebounceDelay <= 0 {
		return fmt.Errorf("DEBOUNCE_MS must be positive")
	}
	if c.Map.StepDelay < 0 {
		return fmt.Errorf("MAP_STEP_DELAY_MS must not be negative")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required when REDIS_ENABLED is set")
	}
	return nil
}

func requireURL(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, value)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * unit
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, strings.ToLower(trimmed))
		}
	}
	return result
}
