package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config path.
const EnvConfigPath = "SLOTBOOK_CONFIG_PATH"

type Config struct {
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address    string `yaml:"address"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		LockPrefix string `yaml:"lock_prefix"`
	} `yaml:"redis"`

	API struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Slots struct {
		GranularityMinutes  int  `yaml:"granularity_minutes"`
		MinUsableGapMinutes *int `yaml:"min_usable_gap_minutes"`
	} `yaml:"slots"`

	Booking struct {
		MinAdvanceMinutes  int `yaml:"min_advance_minutes"`
		DefaultHorizonDays int `yaml:"default_horizon_days"`
		LockTTLSeconds     int `yaml:"lock_ttl_seconds"`
	} `yaml:"booking"`

	Alternatives struct {
		LookaheadDays int `yaml:"lookahead_days"`
		MaxDates      int `yaml:"max_dates"`
	} `yaml:"alternatives"`

	Notifications struct {
		MaxConcurrent int     `yaml:"max_concurrent"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"notifications"`

	Catalog struct {
		Path          string `yaml:"path"`
		ReloadSeconds int    `yaml:"reload_seconds"`
	} `yaml:"catalog"`
}

// Path returns the config path from the environment or the default.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
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

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/slotbook.db"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/catalog.yaml"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.Redis.LockPrefix == "" {
		cfg.Redis.LockPrefix = "slotbook:lock:"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) SlotGranularity() int {
	if c.Slots.GranularityMinutes <= 0 {
		return 15
	}
	return c.Slots.GranularityMinutes
}

// MinUsableGap is 30 unless set; an explicit 0 turns the gap rule off.
func (c *Config) MinUsableGap() int {
	if c.Slots.MinUsableGapMinutes == nil || *c.Slots.MinUsableGapMinutes < 0 {
		return 30
	}
	return *c.Slots.MinUsableGapMinutes
}

func (c *Config) BookingMinAdvance() time.Duration {
	if c.Booking.MinAdvanceMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

func (c *Config) DefaultHorizonDays() int {
	if c.Booking.DefaultHorizonDays <= 0 {
		return 90
	}
	return c.Booking.DefaultHorizonDays
}

func (c *Config) LockTTL() time.Duration {
	if c.Booking.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Booking.LockTTLSeconds) * time.Second
}

func (c *Config) AlternativeLookaheadDays() int {
	if c.Alternatives.LookaheadDays <= 0 {
		return 14
	}
	return c.Alternatives.LookaheadDays
}

func (c *Config) AlternativeMaxDates() int {
	if c.Alternatives.MaxDates <= 0 {
		return 3
	}
	return c.Alternatives.MaxDates
}

func (c *Config) CatalogReloadInterval() time.Duration {
	if c.Catalog.ReloadSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.ReloadSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
