package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Recent-search store backends.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendSQLite    = "sqlite"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	WeatherAPIUnits   string

	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	UpstreamRPS   float64
	UpstreamBurst int

	BreakerEnabled     bool
	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	RecentBackend         string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	SQLitePath            string

	DefaultLocation     string
	TimeZone            string
	Location            *time.Location
	AutoRefreshInterval time.Duration

	LocationMinLen int
	LocationMaxLen int

	ShutdownTimeout time.Duration
	FlushTimeout    time.Duration

	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinLookups int

	TrackedLocations []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Units   string `yaml:"units"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS     int     `yaml:"rate_limit_rps"`
		RateLimitBurst   int     `yaml:"rate_limit_burst"`
		UpstreamRPS      float64 `yaml:"upstream_rps"`
		UpstreamBurst    int     `yaml:"upstream_burst"`
		CircuitBreaker   *bool   `yaml:"circuit_breaker"`
		BreakerFailures  int     `yaml:"breaker_failures"`
		BreakerOpenDelay string  `yaml:"breaker_open_timeout"`
	} `yaml:"reliability"`

	Recent struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"recent"`

	Dashboard struct {
		DefaultLocation string `yaml:"default_location"`
		TimeZone        string `yaml:"time_zone"`
		AutoRefresh     string `yaml:"auto_refresh"`
		LocationMinLen  int    `yaml:"location_min_len"`
		LocationMaxLen  int    `yaml:"location_max_len"`
	} `yaml:"dashboard"`

	Shutdown struct {
		Timeout      string `yaml:"timeout"`
		FlushTimeout string `yaml:"flush_timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow     string `yaml:"degraded_window"`
		DegradedErrorPct   int    `yaml:"degraded_error_pct"`
		DegradedMinLookups int    `yaml:"degraded_min_lookups"`
	} `yaml:"health"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads an optional .env, then config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// Variables already set in the environment win over .env. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := loadDotEnv(filepath.Join(cwd, ".env")); err != nil {
		return nil, err
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey, err = loadAPIKey(cwd)
	if err != nil {
		return nil, err
	}

	cfg.WeatherAPIURL = strings.TrimSpace(fc.WeatherAPI.URL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.WeatherAPIUnits = strings.TrimSpace(fc.WeatherAPI.Units)
	if cfg.WeatherAPIUnits == "" {
		cfg.WeatherAPIUnits = "imperial"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}
	cfg.UpstreamRPS = fc.Reliability.UpstreamRPS
	cfg.UpstreamBurst = fc.Reliability.UpstreamBurst
	if cfg.UpstreamRPS > 0 && cfg.UpstreamBurst <= 0 {
		cfg.UpstreamBurst = 2
	}

	cfg.BreakerEnabled = true
	if fc.Reliability.CircuitBreaker != nil {
		cfg.BreakerEnabled = *fc.Reliability.CircuitBreaker
	}
	cfg.BreakerFailures = fc.Reliability.BreakerFailures
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	cfg.BreakerOpenTimeout = parseDuration(fc.Reliability.BreakerOpenDelay, 30*time.Second)

	cfg.RecentBackend = envOr("RECENT_BACKEND", fc.Recent.Backend)
	cfg.RecentBackend = strings.ToLower(cfg.RecentBackend)
	if cfg.RecentBackend == "" {
		cfg.RecentBackend = BackendInMemory
	}
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Recent.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Recent.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Recent.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.SQLitePath = envOr("SQLITE_PATH", fc.Recent.SQLite.Path)
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "data/dashboard.db"
	}

	cfg.DefaultLocation = strings.TrimSpace(fc.Dashboard.DefaultLocation)
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "New York"
	}
	cfg.TimeZone = strings.TrimSpace(fc.Dashboard.TimeZone)
	cfg.AutoRefreshInterval = parseDurationOrZero(fc.Dashboard.AutoRefresh, 0)
	cfg.LocationMinLen = fc.Dashboard.LocationMinLen
	if cfg.LocationMinLen <= 0 {
		cfg.LocationMinLen = 1
	}
	cfg.LocationMaxLen = fc.Dashboard.LocationMaxLen
	if cfg.LocationMaxLen <= 0 {
		cfg.LocationMaxLen = 100
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)
	cfg.FlushTimeout = parseDuration(fc.Shutdown.FlushTimeout, 2*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.DegradedMinLookups = fc.Health.DegradedMinLookups
	if cfg.DegradedMinLookups <= 0 {
		cfg.DegradedMinLookups = 5
	}
	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads path into the process environment if it exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat .env: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// loadAPIKey prefers WEATHER_API_KEY and falls back to config/secrets.yaml.
func loadAPIKey(cwd string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("WEATHER_API_KEY")); key != "" {
		return key, nil
	}
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	data, err := os.ReadFile(secretsPath)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	if err == nil {
		var sec secretsFile
		if err := yaml.Unmarshal(data, &sec); err != nil {
			return "", fmt.Errorf("parse secrets file: %w", err)
		}
		if key := strings.TrimSpace(sec.WeatherAPIKey); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load checks. RequestTimeout is raised above the
// two-call upstream budget when configured too low.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.WeatherAPIUnits != "imperial" {
		return fmt.Errorf("weather_api.units must be imperial, got %q", cfg.WeatherAPIUnits)
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.RecentBackend {
	case BackendInMemory, BackendMemcached, BackendSQLite:
	default:
		return fmt.Errorf("recent.backend must be in_memory, memcached or sqlite, got %q", cfg.RecentBackend)
	}
	if cfg.LocationMaxLen < cfg.LocationMinLen {
		return fmt.Errorf("dashboard.location_max_len (%d) must be >= location_min_len (%d)", cfg.LocationMaxLen, cfg.LocationMinLen)
	}
	if cfg.AutoRefreshInterval < 0 {
		return fmt.Errorf("dashboard.auto_refresh must not be negative")
	}

	cfg.Location = time.Local
	if cfg.TimeZone != "" {
		loc, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return fmt.Errorf("dashboard.time_zone: %w", err)
		}
		cfg.Location = loc
	}
	return nil
}
