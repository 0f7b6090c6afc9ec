package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	DatabaseHost     string `envconfig:"DB_HOST" default:"localhost"`
	DatabasePort     string `envconfig:"DB_PORT" default:"5432"`
	DatabaseUser     string `envconfig:"DB_USER" default:"postgres"`
	DatabasePassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DatabaseName     string `envconfig:"DB_NAME" default:"teamhub"`
	DatabaseSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationsDir    string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	// LOCK_BACKEND=local serializes only within one process. Run a single
	// instance per database with it, or switch to redis.
	LockBackend   string        `envconfig:"LOCK_BACKEND" default:"local"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	LockWait      time.Duration `envconfig:"LOCK_WAIT" default:"5s"`

	TokenSecret string `envconfig:"TOKEN_AUTH_SECRET" required:"true"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"10"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SingleInstanceOnly reports whether the quota and capacity guarantees hold
// only while one process serves the database: shared postgres storage with
// in-process locks.
func (c *Config) SingleInstanceOnly() bool {
	return c.StorageDriver == StorageDriverPostgres && c.LockBackend == LockBackendLocal
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return errors.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.LockBackend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return errors.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}

	if c.TokenSecret == "" {
		return errors.New("TOKEN_AUTH_SECRET must not be empty")
	}
	if c.LockWait <= 0 {
		return errors.New("LOCK_WAIT must be positive")
	}
	if c.LockBackend == LockBackendRedis && c.LockTTL <= c.LockWait {
		return errors.New("LOCK_TTL must exceed LOCK_WAIT")
	}

	return nil
}

// GetDSN returns the database connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// GetRedisDSN returns the redis URL used by the health check.
func (c *Config) GetRedisDSN() string {
	if c.RedisPassword == "" {
		return fmt.Sprintf("redis://%s/%d", c.RedisAddr, c.RedisDB)
	}
	return fmt.Sprintf("redis://:%s@%s/%d", c.RedisPassword, c.RedisAddr, c.RedisDB)
}
