package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret     string   `mapstructure:"JWT_SECRET"`

	// Overdue detector tunables.
	ScanInterval     time.Duration `mapstructure:"OVERDUE_SCAN_INTERVAL"`
	MaxStepsPerScan  int           `mapstructure:"MAX_CANDIDATE_STEPS_PER_SCAN"`
	SeverityCritDays int           `mapstructure:"SEVERITY_CRITICAL_DAYS"`
	SeverityHighDays int           `mapstructure:"SEVERITY_HIGH_DAYS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("OVERDUE_SCAN_INTERVAL", "30m")
	v.SetDefault("MAX_CANDIDATE_STEPS_PER_SCAN", 500)
	v.SetDefault("SEVERITY_CRITICAL_DAYS", 14)
	v.SetDefault("SEVERITY_HIGH_DAYS", 7)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("OVERDUE_SCAN_INTERVAL")
	v.BindEnv("MAX_CANDIDATE_STEPS_PER_SCAN")
	v.BindEnv("SEVERITY_CRITICAL_DAYS")
	v.BindEnv("SEVERITY_HIGH_DAYS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set; websocket clients fall back to X-Tenant-ID")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Severity thresholds
// must be positive and ordered so the classifier stays monotonic, and the
// detector interval must not be pathological.
func (c *Config) Validate() error {
	if c.ScanInterval < time.Minute {
		return fmt.Errorf("OVERDUE_SCAN_INTERVAL must be at least 1m, got %s", c.ScanInterval)
	}
	if c.MaxStepsPerScan <= 0 {
		return fmt.Errorf("MAX_CANDIDATE_STEPS_PER_SCAN must be positive, got %d", c.MaxStepsPerScan)
	}
	if c.SeverityHighDays <= 0 {
		return fmt.Errorf("SEVERITY_HIGH_DAYS must be positive, got %d", c.SeverityHighDays)
	}
	if c.SeverityCritDays <= c.SeverityHighDays {
		return fmt.Errorf("SEVERITY_CRITICAL_DAYS (%d) must be greater than SEVERITY_HIGH_DAYS (%d)",
			c.SeverityCritDays, c.SeverityHighDays)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}
