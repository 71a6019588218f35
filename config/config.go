package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	DataDir      string `toml:"data_dir"`
	LogLevel     string `toml:"log_level"`
	BodyLimitMB  int    `toml:"body_limit_mb"`
	RateRequests int    `toml:"rate_requests"`
	RateWindowS  int    `toml:"rate_window_seconds"`
}

// StoreConfig points at the remote mail store's session endpoint.
// Token may also come from the SPLITMAIL_TOKEN environment variable
// so it can stay out of the config file.
type StoreConfig struct {
	SessionURL     string `toml:"session_url"`
	Username       string `toml:"username"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type CalDAVConfig struct {
	URL string `toml:"url"`
}

type SplitsConfig struct {
	Path string `toml:"path"`
}

type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	CalDAV CalDAVConfig `toml:"caldav"`
	Splits SplitsConfig `toml:"splits"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Host = "127.0.0.1"
	config.Server.Port = 3000
	config.Server.DataDir = "data"
	config.Server.LogLevel = "info"
	config.Server.BodyLimitMB = 25
	config.Server.RateRequests = 120
	config.Server.RateWindowS = 60
	config.Store.TimeoutSeconds = 30
	config.Splits.Path = "splits.json"

	if _, err := toml.DecodeFile(filepath, &config); err != nil {
		return nil, err
	}

	// Environment wins for secrets.
	if tok := os.Getenv("SPLITMAIL_TOKEN"); tok != "" {
		config.Store.Token = tok
	}
	if url := os.Getenv("SPLITMAIL_SESSION_URL"); url != "" {
		config.Store.SessionURL = url
	}

	if config.Store.SessionURL == "" {
		return nil, fmt.Errorf("store.session_url is required")
	}
	if config.Store.Username == "" {
		return nil, fmt.Errorf("store.username is required")
	}
	if config.Store.Token == "" {
		return nil, fmt.Errorf("store.token is required (config or SPLITMAIL_TOKEN)")
	}

	return &config, nil
}

// Timeout returns the request timeout for mail store calls
func (c *StoreConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Addr returns the host:port the HTTP server binds to
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BodyLimit returns the request body cap in bytes
func (c *ServerConfig) BodyLimit() int {
	if c.BodyLimitMB <= 0 {
		return 25 * 1024 * 1024
	}
	return c.BodyLimitMB * 1024 * 1024
}

// RateWindow returns the rate limiter window
func (c *ServerConfig) RateWindow() time.Duration {
	if c.RateWindowS <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateWindowS) * time.Second
}
