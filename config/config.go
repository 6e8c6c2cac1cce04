package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	TargetURL       string
	MaxPages        int
	Delay           time.Duration
	Timeout         time.Duration
	IdleTimeout     time.Duration
	SettlePause     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	CheckpointEvery int
	OutputFile      string
	OutputFormat    string // csv, json, or dual
	UserAgent       string
	Headless        bool
	Verbose         bool
	MetricsAddr     string
}

// DefaultConfig returns conservative defaults for review targets.
func DefaultConfig() *Config {
	return &Config{
		TargetURL:       "",
		MaxPages:        100,
		Delay:           2 * time.Second,
		Timeout:         30 * time.Second,
		IdleTimeout:     5 * time.Second,
		SettlePause:     1500 * time.Millisecond,
		MaxRetries:      3,
		RetryBackoff:    time.Second,
		RetryBackoffMax: 8 * time.Second,
		CheckpointEvery: 50,
		OutputFile:      "output/reviews.csv",
		OutputFormat:    "csv",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Headless:        true,
		Verbose:         false,
		MetricsAddr:     "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("target URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("target URL must include a host")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("target URL must be http or https")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.SettlePause < 0 {
		return fmt.Errorf("settle pause cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CheckpointEvery <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// EnvString reads an environment override, reporting whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}
