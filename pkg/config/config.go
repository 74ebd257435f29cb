// Package config loads TOML configuration with environment variable
// overrides via viper.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/wqellis/brickvest/pkg/logger"
)

// Config is the root configuration of the engine service.
type Config struct {
	// ServiceName identifies the service in logs and metrics.
	ServiceName string `mapstructure:"service_name"`
	// Environment: dev, staging, prod.
	Environment string `mapstructure:"environment"`
	// HTTP server settings.
	HTTP HTTPConfig `mapstructure:"http"`
	// Database settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka settings for event fan-out.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Logger settings.
	Logger logger.Config `mapstructure:"logger"`
	// Metrics settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Payment gateway settings.
	Payment PaymentConfig `mapstructure:"payment"`
	// Inventory reservation settings.
	Inventory InventoryConfig `mapstructure:"inventory"`
	// IDGen settings.
	IDGen IDGenConfig `mapstructure:"idgen"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig holds connection pool settings for the relational store.
type DatabaseConfig struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    int    `mapstructure:"conn_max_lifetime"`
	LogEnabled         bool   `mapstructure:"log_enabled"`
	SlowQueryThreshold int    `mapstructure:"slow_query_threshold"`
}

// KafkaConfig holds broker settings for the order event publisher.
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	MaxRetries   int      `mapstructure:"max_retries"`
	RetryBackoff int      `mapstructure:"retry_backoff"`
}

// MetricsConfig holds the Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PaymentConfig holds the external payment gateway endpoint settings.
type PaymentConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// InventoryConfig holds reservation lifecycle settings.
type InventoryConfig struct {
	// ReservationTTLSec is how long a reservation may stay held before the
	// sweep releases it.
	ReservationTTLSec int `mapstructure:"reservation_ttl_sec"`
	// SweepIntervalSec is the expiry sweep period.
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
}

// IDGenConfig holds snowflake node settings.
type IDGenConfig struct {
	NodeID int64 `mapstructure:"node_id"`
}

// Load reads the TOML file at path into cfg. Environment variables override
// file values, e.g. BRICKVEST_DATABASE_DSN overrides database.dsn.
func Load(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BRICKVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		// Missing file is tolerated; defaults plus env still apply.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "brickvest-engine")
	v.SetDefault("environment", "dev")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("kafka.topic", "brickvest.orders")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/engine.log")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("payment.timeout_sec", 15)
	v.SetDefault("payment.max_retries", 3)
	v.SetDefault("inventory.reservation_ttl_sec", 900)
	v.SetDefault("inventory.sweep_interval_sec", 60)
	v.SetDefault("idgen.node_id", 1)
}
