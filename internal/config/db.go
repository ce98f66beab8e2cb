package config

import (
	"fmt"
)

type DBConfig struct {
	Host            string `mapstructure:"DB_HOST"`
	Port            int    `mapstructure:"DB_PORT"`
	User            string `mapstructure:"DB_USER"`
	Password        string `mapstructure:"DB_PASSWORD"`
	Name            string `mapstructure:"DB_NAME"`
	SSLMode         string `mapstructure:"DB_SSLMODE"`
	TimeZone        string `mapstructure:"DB_TIMEZONE"`
	MaxOpenConns    int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifeTime int    `mapstructure:"DB_CONN_MAX_LIFETIME_MIN"` // минут

	// Сколько раз повторять транзакцию при serialization failure.
	TxMaxRetries int `mapstructure:"TX_MAX_RETRIES"`
}

// DSN собирает строку подключения для gorm.io/driver/postgres.
func (c *DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host,
		c.User,
		c.Password,
		c.Name,
		c.Port,
		c.SSLMode,
		c.TimeZone,
	)
}

func (c *DBConfig) validate() error {
	// минимальная валидация
	if c.Host == "" || c.User == "" || c.Name == "" {
		return fmt.Errorf("invalid DB config: host/user/name must not be empty")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid DB config: port must be positive, got %d", c.Port)
	}
	return nil
}
