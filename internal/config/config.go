package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds ticker configuration loaded from YAML, .env and the environment.
type Config struct {
	Location      string
	WeatherURL    string
	TZOffsetHours int

	DisplayColumns int

	ClockInterval time.Duration
	FetchInterval time.Duration
	PageInterval  time.Duration
	Quantum       time.Duration

	FetchAttemptTimeout time.Duration
	FetchOverallTimeout time.Duration
	FetchBackoff        time.Duration
	UserAgent           string

	MinForecastDays int
	MiddayIndex     int

	WiFiSSID         string
	WiFiPassword     string
	NetworkInterface string
	JoinTimeout      time.Duration
	JoinPoll         time.Duration
	ConnectedPause   time.Duration

	// NTPServer empty disables the bootstrap time sync.
	NTPServer  string
	NTPTimeout time.Duration

	// StatusAddr empty disables the status server.
	StatusAddr       string
	RateLimitRPS     int
	RateLimitBurst   int
	ErrorWindow      time.Duration
	DegradedErrorPct int
	StaleAfter       time.Duration
	ShutdownTimeout  time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration
}

type fileConfig struct {
	Weather struct {
		Location      string `yaml:"location"`
		URL           string `yaml:"url"`
		TZOffsetHours *int   `yaml:"tz_offset_hours"`
		MinDays       int    `yaml:"min_forecast_days"`
		MiddayIndex   *int   `yaml:"midday_index"`
	} `yaml:"weather"`

	Display struct {
		Columns int `yaml:"columns"`
	} `yaml:"display"`

	Schedule struct {
		ClockInterval string `yaml:"clock_interval"`
		FetchInterval string `yaml:"fetch_interval"`
		PageInterval  string `yaml:"page_interval"`
		Quantum       string `yaml:"quantum"`
	} `yaml:"schedule"`

	Fetch struct {
		AttemptTimeout string `yaml:"attempt_timeout"`
		OverallTimeout string `yaml:"overall_timeout"`
		Backoff        string `yaml:"backoff"`
		UserAgent      string `yaml:"user_agent"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"fetch"`

	Network struct {
		SSID           string `yaml:"ssid"`
		Interface      string `yaml:"interface"`
		JoinTimeout    string `yaml:"join_timeout"`
		JoinPoll       string `yaml:"join_poll"`
		ConnectedPause string `yaml:"connected_pause"`
		NTPServer      string `yaml:"ntp_server"`
		NTPTimeout     string `yaml:"ntp_timeout"`
	} `yaml:"network"`

	Status struct {
		Addr             string `yaml:"addr"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		ErrorWindow      string `yaml:"error_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
		StaleAfter       string `yaml:"stale_after"`
		ShutdownTimeout  string `yaml:"shutdown_timeout"`
	} `yaml:"status"`
}

// Load reads config/{ENV_NAME}.yaml (default dev) relative to the working directory.
// A .env file there is loaded first; variables already set in the environment win.
// WIFI_PASSWORD only comes from the environment. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
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

	cfg.Location = strings.TrimSpace(fc.Weather.Location)
	if cfg.Location == "" {
		cfg.Location = "Ulceby"
	}
	cfg.WeatherURL = strings.TrimSpace(fc.Weather.URL)
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = "https://wttr.in/" + url.PathEscape(cfg.Location) + "?format=j1"
	}
	if fc.Weather.TZOffsetHours != nil {
		cfg.TZOffsetHours = *fc.Weather.TZOffsetHours
	}
	cfg.MinForecastDays = fc.Weather.MinDays
	if cfg.MinForecastDays <= 0 {
		cfg.MinForecastDays = 3
	}
	cfg.MiddayIndex = 4
	if fc.Weather.MiddayIndex != nil {
		cfg.MiddayIndex = *fc.Weather.MiddayIndex
	}

	cfg.DisplayColumns = fc.Display.Columns
	if cfg.DisplayColumns == 0 {
		cfg.DisplayColumns = 16
	}

	cfg.ClockInterval = parseDuration(fc.Schedule.ClockInterval, time.Second)
	cfg.FetchInterval = parseDuration(fc.Schedule.FetchInterval, 60*time.Second)
	cfg.PageInterval = parseDuration(fc.Schedule.PageInterval, 10*time.Second)
	cfg.Quantum = parseDuration(fc.Schedule.Quantum, 250*time.Millisecond)

	cfg.FetchAttemptTimeout = parseDuration(fc.Fetch.AttemptTimeout, 5*time.Second)
	cfg.FetchOverallTimeout = parseDuration(fc.Fetch.OverallTimeout, 10*time.Second)
	cfg.FetchBackoff = parseDuration(fc.Fetch.Backoff, time.Second)
	cfg.UserAgent = strings.TrimSpace(fc.Fetch.UserAgent)
	if cfg.UserAgent == "" {
		cfg.UserAgent = "curl/8.5.0"
	}
	cb := fc.Fetch.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 3
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 1
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, cfg.FetchInterval)

	cfg.WiFiSSID = strings.TrimSpace(os.Getenv("WIFI_SSID"))
	if cfg.WiFiSSID == "" {
		cfg.WiFiSSID = strings.TrimSpace(fc.Network.SSID)
	}
	cfg.WiFiPassword = os.Getenv("WIFI_PASSWORD")
	cfg.NetworkInterface = strings.TrimSpace(fc.Network.Interface)
	cfg.JoinTimeout = parseDuration(fc.Network.JoinTimeout, 20*time.Second)
	cfg.JoinPoll = parseDuration(fc.Network.JoinPoll, 500*time.Millisecond)
	cfg.ConnectedPause = parseDurationOrZero(fc.Network.ConnectedPause, 3*time.Second)
	cfg.NTPServer = strings.TrimSpace(fc.Network.NTPServer)
	cfg.NTPTimeout = parseDuration(fc.Network.NTPTimeout, 5*time.Second)

	cfg.StatusAddr = strings.TrimSpace(os.Getenv("STATUS_ADDR"))
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = strings.TrimSpace(fc.Status.Addr)
	}
	cfg.RateLimitRPS = fc.Status.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	cfg.RateLimitBurst = fc.Status.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	cfg.ErrorWindow = parseDuration(fc.Status.ErrorWindow, 10*time.Minute)
	cfg.DegradedErrorPct = fc.Status.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.StaleAfter = parseDurationOrZero(fc.Status.StaleAfter, 10*time.Minute)
	cfg.ShutdownTimeout = parseDuration(fc.Status.ShutdownTimeout, 5*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
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
// Zero is kept so a pause can be switched off.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

// validate rejects values the loop cannot honour. An attempt timeout above the
// overall timeout and a breaker timeout above the fetch interval are clipped rather
// than rejected.
func validate(cfg *Config) error {
	if cfg.Quantum > time.Second {
		return fmt.Errorf("schedule.quantum must be at most 1s, got %s", cfg.Quantum)
	}
	if cfg.ClockInterval < cfg.Quantum {
		return fmt.Errorf("schedule.clock_interval %s is shorter than the quantum %s", cfg.ClockInterval, cfg.Quantum)
	}
	if cfg.FetchAttemptTimeout > cfg.FetchOverallTimeout {
		cfg.FetchAttemptTimeout = cfg.FetchOverallTimeout
	}
	if cfg.CircuitBreakerTimeout > cfg.FetchInterval {
		cfg.CircuitBreakerTimeout = cfg.FetchInterval
	}
	if cfg.MinForecastDays < 3 {
		return fmt.Errorf("weather.min_forecast_days must be at least 3, got %d", cfg.MinForecastDays)
	}
	if cfg.FetchBackoff >= cfg.FetchOverallTimeout {
		return fmt.Errorf("fetch.backoff %s must be shorter than fetch.overall_timeout %s", cfg.FetchBackoff, cfg.FetchOverallTimeout)
	}
	if cfg.DisplayColumns < 0 {
		return fmt.Errorf("display.columns must be positive, got %d", cfg.DisplayColumns)
	}
	if cfg.TZOffsetHours < -12 || cfg.TZOffsetHours > 14 {
		return fmt.Errorf("weather.tz_offset_hours must be within [-12, 14], got %d", cfg.TZOffsetHours)
	}
	if cfg.MiddayIndex < 0 {
		return fmt.Errorf("weather.midday_index must not be negative, got %d", cfg.MiddayIndex)
	}
	if u, err := url.Parse(cfg.WeatherURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("weather.url is not an absolute URL: %q", cfg.WeatherURL)
	}
	return nil
}
