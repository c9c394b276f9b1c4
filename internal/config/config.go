// Package config loads runtime settings for the transact backends from
// defaults and TRANSACT_* environment variables.
package config

import (
	"time"
)

// Storage drivers understood by internal/storage.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverS3       = "s3"
	DriverFS       = "fs"
)

// Metrics drivers.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Config is the root configuration.
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Tracing TracingConfig `koanf:"tracing"`
}

// StorageConfig selects and parameterises the persistence backend.
type StorageConfig struct {
	Driver   string         `koanf:"driver"   env:"TRANSACT_STORAGE_DRIVER" validate:"oneof=memory sqlite postgres redis s3 fs"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
	S3       S3Config       `koanf:"s3"`
	FS       FSConfig       `koanf:"fs"`
}

// SQLiteConfig locates the embedded database file.
type SQLiteConfig struct {
	Path string `koanf:"path" env:"TRANSACT_STORAGE_SQLITE_PATH"`
}

// PostgresConfig holds the server connection string.
type PostgresConfig struct {
	DSN string `koanf:"dsn" env:"TRANSACT_STORAGE_POSTGRES_DSN"`
}

// RedisConfig holds the server address and commit retry policy.
type RedisConfig struct {
	Addr       string        `koanf:"addr"        env:"TRANSACT_STORAGE_REDIS_ADDR"`
	Password   string        `koanf:"password"    env:"TRANSACT_STORAGE_REDIS_PASSWORD"`
	DB         int           `koanf:"db"          env:"TRANSACT_STORAGE_REDIS_DB"          validate:"min=0"`
	Prefix     string        `koanf:"prefix"      env:"TRANSACT_STORAGE_REDIS_PREFIX"`
	MaxRetries uint64        `koanf:"max_retries" env:"TRANSACT_STORAGE_REDIS_MAX_RETRIES"`
	Backoff    time.Duration `koanf:"backoff"     env:"TRANSACT_STORAGE_REDIS_BACKOFF"     validate:"min=0"`
}

// S3Config addresses the bucket holding one object per entity.
type S3Config struct {
	Bucket          string `koanf:"bucket"            env:"TRANSACT_STORAGE_S3_BUCKET"`
	Region          string `koanf:"region"            env:"TRANSACT_STORAGE_S3_REGION"`
	Endpoint        string `koanf:"endpoint"          env:"TRANSACT_STORAGE_S3_ENDPOINT"          validate:"omitempty,url"`
	PathStyle       bool   `koanf:"path_style"        env:"TRANSACT_STORAGE_S3_PATH_STYLE"`
	Prefix          string `koanf:"prefix"            env:"TRANSACT_STORAGE_S3_PREFIX"`
	AccessKeyID     string `koanf:"access_key_id"     env:"TRANSACT_STORAGE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `koanf:"secret_access_key" env:"TRANSACT_STORAGE_S3_SECRET_ACCESS_KEY"`
}

// FSConfig roots the filesystem object store.
type FSConfig struct {
	Root string `koanf:"root" env:"TRANSACT_STORAGE_FS_ROOT"`
}

// LogConfig selects the zap logger preset.
type LogConfig struct {
	// Mode is passed to observability.NewLogger.
	Mode string `koanf:"mode" env:"TRANSACT_LOG_MODE" validate:"oneof=development production nop"`
}

// MetricsConfig selects the metrics recorder.
type MetricsConfig struct {
	Driver    string `koanf:"driver"    env:"TRANSACT_METRICS_DRIVER"    validate:"oneof=none expvar prometheus"`
	Namespace string `koanf:"namespace" env:"TRANSACT_METRICS_NAMESPACE"`
}

// TracingConfig toggles OpenTelemetry spans.
type TracingConfig struct {
	Enabled bool `koanf:"enabled" env:"TRANSACT_TRACING_ENABLED"`
}

// Default returns the configuration used when no environment overrides are
// present: an embedded sqlite file, development logging, no metrics.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver: DriverSQLite,
			SQLite: SQLiteConfig{Path: "transact.db"},
			Redis: RedisConfig{
				Addr:       "localhost:6379",
				Prefix:     "transact",
				MaxRetries: 3,
				Backoff:    10 * time.Millisecond,
			},
			S3: S3Config{Region: "us-east-1"},
			FS: FSConfig{Root: "transact-objects"},
		},
		Log:     LogConfig{Mode: "development"},
		Metrics: MetricsConfig{Driver: MetricsNone, Namespace: "transact"},
	}
}
