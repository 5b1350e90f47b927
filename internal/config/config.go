// Package config содержит логику чтения конфигурации клиента бронирования.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации клиента бронирования парковки.
type Config struct {
	APIAddress      string        `env:"API_ADDRESS"`
	UserID          string        `env:"USER_ID"`
	AuthToken       string        `env:"AUTH_TOKEN"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"`
	HourlyRate      float64       `env:"HOURLY_RATE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envAPIAddress := cfg.APIAddress
	envUserID := cfg.UserID
	envAuthToken := cfg.AuthToken
	envRefreshInterval := cfg.RefreshInterval
	envRequestTimeout := cfg.RequestTimeout
	envHourlyRate := cfg.HourlyRate

	flag.StringVar(&cfg.APIAddress, "a", "http://localhost:8080", "parking backend base address")
	flag.StringVar(&cfg.UserID, "u", "", "current user id")
	flag.StringVar(&cfg.AuthToken, "t", "", "bearer token for the backend")
	flag.DurationVar(&cfg.RefreshInterval, "i", 30*time.Second, "full refresh interval")
	flag.DurationVar(&cfg.RequestTimeout, "rt", 10*time.Second, "per-request timeout")
	flag.Float64Var(&cfg.HourlyRate, "r", 2.5, "fallback hourly rate when /config/parking is unavailable")

	flag.Parse()

	if envAPIAddress != "" {
		cfg.APIAddress = envAPIAddress
	}
	if envUserID != "" {
		cfg.UserID = envUserID
	}
	if envAuthToken != "" {
		cfg.AuthToken = envAuthToken
	}
	if envRefreshInterval != 0 {
		cfg.RefreshInterval = envRefreshInterval
	}
	if envRequestTimeout != 0 {
		cfg.RequestTimeout = envRequestTimeout
	}
	if envHourlyRate != 0 {
		cfg.HourlyRate = envHourlyRate
	}

	if cfg.APIAddress == "" {
		cfg.APIAddress = "http://localhost:8080"
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.HourlyRate <= 0 {
		cfg.HourlyRate = 2.5
	}

	return cfg, nil
}
