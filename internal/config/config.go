package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
		ProjectID       string `yaml:"project_id"`
	} `yaml:"firebase"`

	Schedule struct {
		Timezone      string `yaml:"timezone"`
		ScanMinute    int    `yaml:"scan_minute"`
		SweepHour     int    `yaml:"sweep_hour"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"schedule"`

	Send struct {
		MaxAttempts   int     `yaml:"max_attempts"`
		RetryDelaysMS []int   `yaml:"retry_delays_ms"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"send"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	HTTP struct {
		Port             int `yaml:"port"`
		RateLimit        int `yaml:"rate_limit"`
		RateLimitWindowS int `yaml:"rate_limit_window_seconds"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Settings struct {
		CachePath string `yaml:"cache_path"`
	} `yaml:"settings"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cfg.Settings.CachePath != "" {
		if err = os.MkdirAll(filepath.Dir(cfg.Settings.CachePath), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Kolkata"
	}
	if c.Schedule.SweepHour == 0 {
		c.Schedule.SweepHour = 3
	}
	if c.Schedule.RetentionDays <= 0 {
		c.Schedule.RetentionDays = 30
	}
	if c.Send.MaxAttempts <= 0 {
		c.Send.MaxAttempts = 3
	}
	if len(c.Send.RetryDelaysMS) == 0 {
		c.Send.RetryDelaysMS = []int{1000, 5000, 30000}
	}
	if c.Send.RatePerSecond <= 0 {
		c.Send.RatePerSecond = 20
	}
	if c.Send.Burst <= 0 {
		c.Send.Burst = 30
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RateLimit <= 0 {
		c.HTTP.RateLimit = 30
	}
	if c.HTTP.RateLimitWindowS <= 0 {
		c.HTTP.RateLimitWindowS = 60
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Settings.CachePath == "" {
		c.Settings.CachePath = "data/settings.db"
	}
}

// Retention returns the sweep cutoff age.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Schedule.RetentionDays) * 24 * time.Hour
}

// RetryDelays converts the configured millisecond delays to durations.
func (c *Config) RetryDelays() []time.Duration {
	out := make([]time.Duration, len(c.Send.RetryDelaysMS))
	for i, ms := range c.Send.RetryDelaysMS {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}
