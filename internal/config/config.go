// Package config reads per-service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Gateway struct {
	Port               string `env:"PORT" envDefault:"8080"`
	OrdersServiceURL   string `env:"ORDERS_SERVICE_URL,required"`
	SessionsServiceURL string `env:"SESSIONS_SERVICE_URL,required"`
	OTLPEndpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
}

type Orders struct {
	Port         string   `env:"PORT" envDefault:"8081"`
	PostgresURL  string   `env:"POSTGRES_URL,required"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
}

type Sessions struct {
	Port              string   `env:"PORT" envDefault:"8082"`
	PostgresURL       string   `env:"POSTGRES_URL,required"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	BlobDir           string   `env:"BLOB_DIR" envDefault:"data/uploads"`
	PaymentGatewayURL string   `env:"PAYMENT_GATEWAY_URL"`
	PaymentAPIKey     string   `env:"PAYMENT_API_KEY"`
}

type Notifier struct {
	Port string `env:"PORT" envDefault:"8083"`
}

type Worker struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS,required" envSeparator:","`
	NotifierURL  string   `env:"NOTIFIER_URL,required"`
}

// Load parses one service's config struct from the environment.
func Load[T any]() (*T, error) {
	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
