// Package config содержит логику чтения конфигурации сервиса пиццерии.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса пиццерии. Значение
// конструируется один раз при старте и передаётся в конструкторы компонентов;
// компоненты не читают окружение самостоятельно.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	StoreAddress   string `env:"STORE_ADDRESS"`
	PaymentAddress string `env:"PAYMENT_ADDRESS"`
	NotifyAddress  string `env:"NOTIFY_ADDRESS"`

	StoreAPIKey   string `env:"STORE_API_KEY"`
	PaymentAPIKey string `env:"PAYMENT_API_KEY"`
	PaymentSource string `env:"PAYMENT_SOURCE" envDefault:"tok_visa"`
	NotifyAPIKey  string `env:"NOTIFY_API_KEY"`
	NotifyFrom    string `env:"NOTIFY_FROM" envDefault:"orders@pizzeria.example"`

	HashSecret string `env:"HASH_SECRET" envDefault:"pizzeria-secret"`

	MaxItems          int           `env:"MAX_ITEMS" envDefault:"10"`
	SettleInterval    time.Duration `env:"SETTLE_INTERVAL" envDefault:"5m"`
	SettleConcurrency int           `env:"SETTLE_CONCURRENCY" envDefault:"8"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envStoreAddress := cfg.StoreAddress
	envPaymentAddress := cfg.PaymentAddress
	envNotifyAddress := cfg.NotifyAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.StoreAddress, "s", "", "document store address")
	flag.StringVar(&cfg.PaymentAddress, "p", "", "payment gateway address")
	flag.StringVar(&cfg.NotifyAddress, "n", "", "notification service address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envStoreAddress != "" {
		cfg.StoreAddress = envStoreAddress
	}
	if envPaymentAddress != "" {
		cfg.PaymentAddress = envPaymentAddress
	}
	if envNotifyAddress != "" {
		cfg.NotifyAddress = envNotifyAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.MaxItems <= 0 {
		return nil, fmt.Errorf("MAX_ITEMS must be positive, got %d", cfg.MaxItems)
	}
	if cfg.SettleInterval <= 0 {
		return nil, fmt.Errorf("SETTLE_INTERVAL must be positive, got %s", cfg.SettleInterval)
	}
	if cfg.SettleConcurrency <= 0 {
		return nil, fmt.Errorf("SETTLE_CONCURRENCY must be positive, got %d", cfg.SettleConcurrency)
	}

	return cfg, nil
}
