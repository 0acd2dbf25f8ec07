package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Parking    ParkingConfig    `yaml:"parking"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Payment    PaymentConfig    `yaml:"payment"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres, sqlite or memory
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ParkingConfig describes the lot and the analytics windows.
type ParkingConfig struct {
	Slots       int    `yaml:"slots"`
	Timezone    string `yaml:"timezone"`
	DebounceMS  int    `yaml:"debounce_ms"`
	MinDwellMS  int    `yaml:"min_dwell_ms"`
	DwellWindow int    `yaml:"dwell_window"`
	ReplayLimit int    `yaml:"replay_limit"`
}

// PricingConfig is the pricing seeded when the store has no active version.
type PricingConfig struct {
	Unit      string   `yaml:"unit"`
	UnitPrice float64  `yaml:"unit_price"`
	Minimum   float64  `yaml:"minimum"`
	Maximum   *float64 `yaml:"maximum"`
}

// TelemetryConfig holds the ingest queue settings.
type TelemetryConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PaymentConfig holds the payment payload settings.
type PaymentConfig struct {
	MerchantName     string `yaml:"merchant_name"`
	MerchantCity     string `yaml:"merchant_city"`
	PayloadCacheSize int    `yaml:"payload_cache_size"`
	QRSize           int    `yaml:"qr_size"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		if cfg.Database.DSN == "" {
			cfg.Database.Driver = "memory"
		} else {
			cfg.Database.Driver = "postgres"
		}
	}

	if cfg.Parking.Slots <= 0 {
		cfg.Parking.Slots = 2
	}
	if cfg.Parking.Timezone == "" {
		cfg.Parking.Timezone = "America/Sao_Paulo"
	}
	if cfg.Parking.DebounceMS <= 0 {
		cfg.Parking.DebounceMS = 2000
	}
	if cfg.Parking.MinDwellMS <= 0 {
		cfg.Parking.MinDwellMS = 5000
	}
	if cfg.Parking.DwellWindow <= 0 {
		cfg.Parking.DwellWindow = 30
	}
	if cfg.Parking.ReplayLimit <= 0 {
		cfg.Parking.ReplayLimit = 200
	}

	if cfg.Pricing.Unit == "" {
		cfg.Pricing.Unit = "per_second"
		cfg.Pricing.UnitPrice = 0.00166 // 1.00 per 10 minutes
		cfg.Pricing.Minimum = 1.00
		maximum := 50.00
		cfg.Pricing.Maximum = &maximum
	}

	if cfg.Telemetry.QueueSize <= 0 {
		cfg.Telemetry.QueueSize = 256
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Payment.MerchantName == "" {
		cfg.Payment.MerchantName = "ESTACIONAMENTO"
	}
	if cfg.Payment.MerchantCity == "" {
		cfg.Payment.MerchantCity = "SAO PAULO"
	}
	if cfg.Payment.PayloadCacheSize <= 0 {
		cfg.Payment.PayloadCacheSize = 128
	}
	if cfg.Payment.QRSize <= 0 {
		cfg.Payment.QRSize = 256
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
