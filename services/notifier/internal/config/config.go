package config

import (
	"fmt"
	"os"
	"strings"

	base "github.com/aminammar1/storefront/libs/config"
)

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Config struct {
	App   base.AppConfig
	Kafka KafkaConfig
	SMTP  SMTPConfig
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("SHOP_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: *appCfg,
		Kafka: KafkaConfig{
			Brokers:       envList("SHOP_KAFKA_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup: envString("SHOP_KAFKA_CONSUMER_GROUP", "storefront-notifier"),
		},
		SMTP: SMTPConfig{
			Host:     envString("SHOP_SMTP_HOST", ""),
			Port:     envString("SHOP_SMTP_PORT", "587"),
			Username: envString("SHOP_SMTP_USERNAME", ""),
			Password: envString("SHOP_SMTP_PASSWORD", ""),
			From:     envString("SHOP_SMTP_FROM", "no-reply@storefront.local"),
		},
	}

	if cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("SHOP_SMTP_HOST must be set, the notifier only sends mail")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
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
