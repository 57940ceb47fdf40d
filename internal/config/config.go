package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"realty-engine/internal/domain"
	"realty-engine/internal/retry"
	"realty-engine/internal/validate"
)

type Proxy struct {
	URL      string `yaml:"url" json:"url" validate:"omitempty,url"`
	Username string `yaml:"username" json:"username"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port" validate:"gte=1,lte=65535"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Log struct {
		Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=trace debug info warn error"`
		Format string `yaml:"format" json:"format" validate:"omitempty,oneof=console json"`
	} `yaml:"log" json:"log"`

	Site struct {
		Source        string            `yaml:"source" json:"source"`
		BaseURL       string            `yaml:"base_url" json:"base_url" validate:"required,url"`
		BootstrapPath string            `yaml:"bootstrap_path" json:"bootstrap_path" validate:"omitempty,startswith=/"`
		SearchPath    string            `yaml:"search_path" json:"search_path" validate:"required,startswith=/"`
		UserAgent     string            `yaml:"user_agent" json:"user_agent"`
		Headers       map[string]string `yaml:"headers" json:"headers"`
		Proxy         Proxy             `yaml:"proxy" json:"proxy"`
	} `yaml:"site" json:"site"`

	Search struct {
		Locations     []domain.LocationConfig `yaml:"locations" json:"locations" validate:"dive"`
		PropertyTypes []domain.PropertyType   `yaml:"property_types" json:"property_types"`
		PriceMin      *float64                `yaml:"price_min" json:"price_min"`
		PriceMax      *float64                `yaml:"price_max" json:"price_max"`
	} `yaml:"search" json:"search"`

	Limits struct {
		StreamConcurrency     int     `yaml:"stream_concurrency" json:"stream_concurrency" validate:"gte=0,lte=16"`
		FetchConcurrency      int     `yaml:"fetch_concurrency" json:"fetch_concurrency" validate:"gte=0,lte=64"`
		RequestsPerSecond     float64 `yaml:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
		Burst                 int     `yaml:"burst" json:"burst" validate:"gte=0"`
		MaxPages              int     `yaml:"max_pages" json:"max_pages" validate:"gte=0"`
		RequestTimeoutSeconds int     `yaml:"request_timeout_seconds" json:"request_timeout_seconds" validate:"gte=0"`
		RunTimeoutSeconds     int     `yaml:"run_timeout_seconds" json:"run_timeout_seconds" validate:"gte=0"`
	} `yaml:"limits" json:"limits"`

	Retry struct {
		MaxRetries       int     `yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=20"`
		InitialBackoffMs int     `yaml:"initial_backoff_ms" json:"initial_backoff_ms" validate:"gte=0"`
		MaxBackoffMs     int     `yaml:"max_backoff_ms" json:"max_backoff_ms" validate:"gte=0"`
		Multiplier       float64 `yaml:"multiplier" json:"multiplier" validate:"omitempty,gte=1"`
		Jitter           float64 `yaml:"jitter" json:"jitter" validate:"gte=0,lte=1"`
		CooldownSeconds  int     `yaml:"cooldown_seconds" json:"cooldown_seconds" validate:"gte=0"`
	} `yaml:"retry" json:"retry"`

	Validation struct {
		BBox         validate.BBox       `yaml:"bbox" json:"bbox"`
		MinYear      int                 `yaml:"min_year" json:"min_year"`
		MaxYearAhead int                 `yaml:"max_year_ahead" json:"max_year_ahead"`
		AreaCities   map[string][]string `yaml:"area_cities" json:"area_cities"`
	} `yaml:"validation" json:"validation"`

	Store struct {
		Driver        string `yaml:"driver" json:"driver" validate:"omitempty,oneof=sqlite postgres"`
		DSN           string `yaml:"dsn" json:"dsn"`
		RetentionDays int    `yaml:"retention_days" json:"retention_days" validate:"gte=0"`
	} `yaml:"store" json:"store"`

	Schedule struct {
		IntervalSeconds int    `yaml:"interval_seconds" json:"interval_seconds" validate:"gte=0"`
		Cron            string `yaml:"cron" json:"cron"`
	} `yaml:"schedule" json:"schedule"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", domain.ErrFatalConfig, path, err)
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

// ApplyDefaults fills zero values that have a sensible default.
func ApplyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 38471
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Site.Source == "" {
		cfg.Site.Source = "centris"
	}
	if cfg.Site.BootstrapPath == "" {
		cfg.Site.BootstrapPath = "/"
	}
	if cfg.Limits.StreamConcurrency == 0 {
		cfg.Limits.StreamConcurrency = 2
	}
	if cfg.Limits.FetchConcurrency == 0 {
		cfg.Limits.FetchConcurrency = 4
	}
	if cfg.Limits.Burst == 0 {
		cfg.Limits.Burst = 1
	}
	if cfg.Limits.RequestTimeoutSeconds == 0 {
		cfg.Limits.RequestTimeoutSeconds = 30
	}
	if cfg.Retry.InitialBackoffMs == 0 {
		cfg.Retry.InitialBackoffMs = 1000
	}
	if cfg.Retry.MaxBackoffMs == 0 {
		cfg.Retry.MaxBackoffMs = 30000
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
}

// Query resolves the search section. It does not validate.
func (c Config) Query() domain.SearchQuery {
	return domain.SearchQuery{
		Locations:     c.Search.Locations,
		PropertyTypes: c.Search.PropertyTypes,
		PriceMin:      c.Search.PriceMin,
		PriceMax:      c.Search.PriceMax,
	}
}

func (c Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	p.MaxRetries = c.Retry.MaxRetries
	p.InitialBackoff = time.Duration(c.Retry.InitialBackoffMs) * time.Millisecond
	p.MaxBackoff = time.Duration(c.Retry.MaxBackoffMs) * time.Millisecond
	p.BackoffMultiplier = c.Retry.Multiplier
	p.Jitter = c.Retry.Jitter
	p.Cooldown = time.Duration(c.Retry.CooldownSeconds) * time.Second
	return p
}

func (c Config) ValidationConfig() validate.Config {
	return validate.Config{
		BBox:         c.Validation.BBox,
		MinYear:      c.Validation.MinYear,
		MaxYearAhead: c.Validation.MaxYearAhead,
		AreaCities:   c.Validation.AreaCities,
	}.WithDefaults()
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Limits.RequestTimeoutSeconds) * time.Second
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Limits.RunTimeoutSeconds) * time.Second
}
