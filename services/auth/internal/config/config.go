package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	base "github.com/aminammar1/storefront/libs/config"
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

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

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	LoginLimit  int
	LoginWindow time.Duration
	OTPLimit    int
	OTPWindow   time.Duration
	Redis       RedisConfig
}

type OTPConfig struct {
	TTL          time.Duration
	VerifyWindow time.Duration
}

type CookieConfig struct {
	Domain string
	Secure bool
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SocialConfig struct {
	GoogleClientID string
}

type KafkaConfig struct {
	Brokers []string
}

type Config struct {
	App             base.AppConfig
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Argon2          Argon2Params
	OTP             OTPConfig
	Cookie          CookieConfig
	DB              DBConfig
	RateLimit       RateLimitConfig
	SMTP            SMTPConfig
	Social          SocialConfig
	Kafka           KafkaConfig
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("SHOP_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:             *appCfg,
		JWTSecret:       envString("SHOP_JWT_SECRET", ""),
		JWTIssuer:       envString("SHOP_JWT_ISSUER", "storefront-auth"),
		AccessTokenTTL:  envDuration("SHOP_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: envDuration("SHOP_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		Argon2: Argon2Params{
			Memory:      uint32(envInt("SHOP_ARGON2_MEMORY", 64*1024)),
			Iterations:  uint32(envInt("SHOP_ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(envInt("SHOP_ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(envInt("SHOP_ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(envInt("SHOP_ARGON2_KEY_LENGTH", 32)),
		},
		OTP: OTPConfig{
			TTL:          envDuration("SHOP_OTP_TTL", 10*time.Minute),
			VerifyWindow: envDuration("SHOP_OTP_VERIFY_WINDOW", 15*time.Minute),
		},
		Cookie: CookieConfig{
			Domain: envString("SHOP_COOKIE_DOMAIN", ""),
			Secure: appCfg.Env != "dev",
		},
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "storefront"),
			User:     envString("POSTGRES_USER", "storefront"),
			Password: envString("POSTGRES_PASSWORD", "storefront"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		RateLimit: RateLimitConfig{
			LoginLimit:  envInt("SHOP_LOGIN_RATE_LIMIT", 10),
			LoginWindow: envDuration("SHOP_LOGIN_RATE_WINDOW", 1*time.Minute),
			OTPLimit:    envInt("SHOP_OTP_RATE_LIMIT", 3),
			OTPWindow:   envDuration("SHOP_OTP_RATE_WINDOW", 10*time.Minute),
			Redis: RedisConfig{
				Addr:     envString("SHOP_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("SHOP_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("SHOP_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("SHOP_RATE_LIMIT_REDIS_PREFIX", "shop:auth:rl:"),
			},
		},
		SMTP: SMTPConfig{
			Host:     envString("SHOP_SMTP_HOST", ""),
			Port:     envString("SHOP_SMTP_PORT", "587"),
			Username: envString("SHOP_SMTP_USERNAME", ""),
			Password: envString("SHOP_SMTP_PASSWORD", ""),
			From:     envString("SHOP_SMTP_FROM", "no-reply@storefront.local"),
		},
		Social: SocialConfig{
			GoogleClientID: envString("SHOP_GOOGLE_CLIENT_ID", ""),
		},
		Kafka: KafkaConfig{
			Brokers: envList("SHOP_KAFKA_BROKERS", nil),
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

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
