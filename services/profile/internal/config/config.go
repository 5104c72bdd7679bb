package config

import (
	"fmt"
	"os"
	"strconv"

	base "github.com/aminammar1/storefront/libs/config"
)

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type Config struct {
	App       base.AppConfig
	JWTSecret string
	DB        DBConfig
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("SHOP_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:       *appCfg,
		JWTSecret: envString("SHOP_JWT_SECRET", ""),
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "storefront"),
			User:     envString("POSTGRES_USER", "storefront"),
			Password: envString("POSTGRES_PASSWORD", "storefront"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SHOP_JWT_SECRET must be set")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
