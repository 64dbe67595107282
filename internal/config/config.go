package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string `mapstructure:"PORT"`
	Env              string `mapstructure:"ENV"`
	DatabaseDSN      string `mapstructure:"DATABASE_DSN"`
	DBMaxOpenConns   int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns   int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL         string `mapstructure:"REDIS_URL"`
	EventStream      string `mapstructure:"EVENT_STREAM"`
	MigrationsDir    string `mapstructure:"MIGRATIONS_DIR"`
	SyncBatchSize    int    `mapstructure:"SYNC_BATCH_SIZE"`
	SyncAutoReferral bool   `mapstructure:"SYNC_AUTO_REFERRAL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("EVENT_STREAM", "clinsync.events")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("SYNC_BATCH_SIZE", 100)
	v.SetDefault("SYNC_AUTO_REFERRAL", true)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_DSN")
	v.BindEnv("DB_MAX_OPEN_CONNS")
	v.BindEnv("DB_MAX_IDLE_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("EVENT_STREAM")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("SYNC_BATCH_SIZE")
	v.BindEnv("SYNC_AUTO_REFERRAL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.SyncBatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.SyncBatchSize)
	}
	if c.DBMaxOpenConns < c.DBMaxIdleConns {
		return fmt.Errorf("DB_MAX_OPEN_CONNS (%d) must be >= DB_MAX_IDLE_CONNS (%d)",
			c.DBMaxOpenConns, c.DBMaxIdleConns)
	}
	return nil
}
