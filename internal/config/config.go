package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"ENV"`
	ServiceName string `mapstructure:"SERVICE_NAME"`

	DB DBConfig `mapstructure:",squash"`

	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	GRPCAddr string `mapstructure:"CORE_GRPC_ADDR"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Пустой секрет отключает проверку JWT (локальная разработка).
	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	OTELEndpoint string `mapstructure:"OTEL_ENDPOINT"`

	MeetingBaseURL      string `mapstructure:"MEETING_BASE_URL"`
	SweeperSchedule     string `mapstructure:"SWEEPER_SCHEDULE"`
	SessionGraceMinutes int    `mapstructure:"SESSION_GRACE_MINUTES"`
	SlotCacheTTLSec     int    `mapstructure:"SLOT_CACHE_TTL_SEC"`
}

var keys = []string{
	"ENV", "SERVICE_NAME",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_TIMEZONE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME_MIN", "TX_MAX_RETRIES",
	"HTTP_ADDR", "CORE_GRPC_ADDR",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"AUTH_JWT_SECRET", "OTEL_ENDPOINT",
	"MEETING_BASE_URL", "SWEEPER_SCHEDULE", "SESSION_GRACE_MINUTES", "SLOT_CACHE_TTL_SEC",
}

// Load читает конфигурацию из окружения; .env подхватывается, если он есть.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("SERVICE_NAME", "clinic-scheduling")
	v.SetDefault("DB_HOST", "postgres")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "clinic")
	v.SetDefault("DB_PASSWORD", "clinic")
	v.SetDefault("DB_NAME", "clinic_db")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MIN", 30)
	v.SetDefault("TX_MAX_RETRIES", 5)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORE_GRPC_ADDR", ":50051")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MEETING_BASE_URL", "https://meet.clinic.local/room")
	v.SetDefault("SESSION_GRACE_MINUTES", 30)
	v.SetDefault("SLOT_CACHE_TTL_SEC", 60)

	// AutomaticEnv не виден Unmarshal без явного BindEnv
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

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

// Validate проверяет, что с такой конфигурацией можно стартовать.
func (c *Config) Validate() error {
	if err := c.DB.validate(); err != nil {
		return err
	}
	if c.HTTPAddr == "" || c.GRPCAddr == "" {
		return fmt.Errorf("HTTP_ADDR and CORE_GRPC_ADDR must not be empty")
	}
	if c.SessionGraceMinutes < 0 {
		return fmt.Errorf("SESSION_GRACE_MINUTES must not be negative, got %d", c.SessionGraceMinutes)
	}
	if !c.IsDev() && c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when ENV=%q", c.Env)
	}
	return nil
}

func (c *Config) SessionGrace() time.Duration {
	return time.Duration(c.SessionGraceMinutes) * time.Minute
}

func (c *Config) SlotCacheTTL() time.Duration {
	return time.Duration(c.SlotCacheTTLSec) * time.Second
}
