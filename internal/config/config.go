package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

type Feed struct {
	Endpoint              string `yaml:"endpoint"`
	TimeoutSec            int    `yaml:"timeout_sec"`
	CacheTTLSeconds       int    `yaml:"cache_ttl_sec"`
	MaxRequestsPerMinute  int    `yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int    `yaml:"min_request_interval_sec"`
	Burst                 int    `yaml:"burst"`
	MaxRetries            int    `yaml:"max_retries"`
}

type Sessions struct {
	Max        int `yaml:"max"`
	IdleTTLSec int `yaml:"idle_ttl_sec"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Feed     Feed     `yaml:"feed"`
	Sessions Sessions `yaml:"sessions"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Feed: Feed{
			Endpoint:             "https://interview.switcheo.com/prices.json",
			TimeoutSec:           15,
			CacheTTLSeconds:      30,
			MaxRequestsPerMinute: 30,
			Burst:                5,
			MaxRetries:           2,
		},
		Sessions: Sessions{
			Max:        10000,
			IdleTTLSec: 1800,
		},
	}
}

// Load reads YAML config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := envInt("REQUEST_TIMEOUT_SEC"); v > 0 {
		cfg.Server.RequestTimeoutSec = v
	}
	if v := os.Getenv("FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := envInt("FEED_TIMEOUT_SEC"); v > 0 {
		cfg.Feed.TimeoutSec = v
	}
	if v, ok := envIntSet("FEED_CACHE_TTL_SEC"); ok && v >= 0 {
		cfg.Feed.CacheTTLSeconds = v
	}
	if v, ok := envIntSet("FEED_MAX_RPM"); ok && v >= 0 {
		cfg.Feed.MaxRequestsPerMinute = v
	}
	if v, ok := envIntSet("FEED_MIN_INTERVAL_SEC"); ok && v >= 0 {
		cfg.Feed.MinRequestIntervalSec = v
	}
	if v := envInt("FEED_BURST"); v > 0 {
		cfg.Feed.Burst = v
	}
	if v, ok := envIntSet("FEED_RETRIES"); ok && v >= 0 {
		cfg.Feed.MaxRetries = v
	}
	if v := envInt("SESSION_MAX"); v > 0 {
		cfg.Sessions.Max = v
	}
	if v, ok := envIntSet("SESSION_IDLE_TTL_SEC"); ok && v >= 0 {
		cfg.Sessions.IdleTTLSec = v
	}
}

func envInt(key string) int {
	v, _ := envIntSet(key)
	return v
}

func envIntSet(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	var x int
	if _, err := fmt.Sscanf(raw, "%d", &x); err != nil {
		return 0, false
	}
	return x, true
}
