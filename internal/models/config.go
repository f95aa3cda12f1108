package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Brokers  BrokersConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// RedisConfig holds the connection settings shared by the task queue and
// the credential token cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WorkerConfig holds task queue worker settings
type WorkerConfig struct {
	Concurrency  int
	RetryDelay   time.Duration
	MaxRetries   int
	QueueName    string
	ShutdownWait time.Duration
}

// BrokersConfig holds broker integration settings
type BrokersConfig struct {
	CatalogFile       string
	ZerodhaBaseURL    string
	CoinSwitchBaseURL string
}
