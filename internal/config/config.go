// Package config loads the service configuration.
//
// Sources are applied in order: built-in defaults, an optional YAML file,
// a .env file in the working directory, and RESELLER_* environment
// variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMySQL    = "mysql"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	HTTPAddr string         `yaml:"http_addr"`
	GRPCAddr string         `yaml:"grpc_addr"`
	Storage  StorageConfig  `yaml:"storage"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Redis    RedisConfig    `yaml:"redis"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      LogConfig      `yaml:"log"`
}

type StorageConfig struct {
	// Backend holds the registries: memory, redis, mysql or dynamodb.
	Backend string `yaml:"backend"`

	// Idempotency enables request ID deduplication, in Redis for the redis
	// backend and in an in-process set otherwise.
	Idempotency bool `yaml:"idempotency"`

	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type DynamoDBConfig struct {
	Region    string `yaml:"region"`
	Table     string `yaml:"table"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// AppendAttempts bounds optimistic retries of a seller append;
	// AppendBackoff is the base of the jittered wait between them.
	AppendAttempts int           `yaml:"append_attempts"`
	AppendBackoff  time.Duration `yaml:"append_backoff"`
}

type JournalConfig struct {
	// Sink is "mysql" or "log".
	Sink      string `yaml:"sink"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type LogConfig struct {
	Debug       bool `yaml:"debug"`
	Development bool `yaml:"development"`
}

func Default() *Config {
	return &Config{
		HTTPAddr: ":8080",
		GRPCAddr: ":50051",
		Storage: StorageConfig{
			Backend:        BackendMemory,
			Idempotency:    true,
			IdempotencyTTL: 24 * time.Hour,
		},
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/reseller?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			Migrate:         true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		DynamoDB: DynamoDBConfig{
			Region:         "us-east-1",
			Table:          "reseller",
			AppendAttempts: 25,
			AppendBackoff:  5 * time.Millisecond,
		},
		Journal: JournalConfig{
			Sink:      "log",
			Workers:   4,
			QueueSize: 10000,
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("RESELLER_HTTP_ADDR", &c.HTTPAddr)
	str("RESELLER_GRPC_ADDR", &c.GRPCAddr)
	str("RESELLER_STORAGE_BACKEND", &c.Storage.Backend)
	str("RESELLER_MYSQL_DSN", &c.MySQL.DSN)
	str("RESELLER_REDIS_ADDR", &c.Redis.Addr)
	str("RESELLER_REDIS_PASSWORD", &c.Redis.Password)
	str("RESELLER_DYNAMODB_REGION", &c.DynamoDB.Region)
	str("RESELLER_DYNAMODB_TABLE", &c.DynamoDB.Table)
	str("RESELLER_DYNAMODB_ENDPOINT", &c.DynamoDB.Endpoint)
	str("AWS_ACCESS_KEY_ID", &c.DynamoDB.AccessKey)
	str("AWS_SECRET_ACCESS_KEY", &c.DynamoDB.SecretKey)
	str("RESELLER_JOURNAL_SINK", &c.Journal.Sink)

	for key, dst := range map[string]*int{
		"RESELLER_REDIS_DB":            &c.Redis.DB,
		"RESELLER_JOURNAL_WORKERS":     &c.Journal.Workers,
		"RESELLER_JOURNAL_QUEUE_SIZE":  &c.Journal.QueueSize,
		"RESELLER_MYSQL_MAX_OPEN_CONN": &c.MySQL.MaxOpenConns,
		"RESELLER_DYNAMODB_ATTEMPTS":   &c.DynamoDB.AppendAttempts,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*bool{
		"RESELLER_IDEMPOTENCY":     &c.Storage.Idempotency,
		"RESELLER_MYSQL_MIGRATE":   &c.MySQL.Migrate,
		"RESELLER_LOG_DEBUG":       &c.Log.Debug,
		"RESELLER_LOG_DEVELOPMENT": &c.Log.Development,
	} {
		if err := flag(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendMySQL:
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			errs = append(errs, errors.New("dynamodb.table is required"))
		}
		if c.DynamoDB.Region == "" {
			errs = append(errs, errors.New("dynamodb.region is required"))
		}
		if c.DynamoDB.AppendAttempts < 1 {
			errs = append(errs, errors.New("dynamodb.append_attempts must be at least 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Journal.Sink {
	case "log", BackendMySQL:
	default:
		errs = append(errs, fmt.Errorf("unknown journal sink %q", c.Journal.Sink))
	}

	if c.Journal.Workers < 1 {
		errs = append(errs, errors.New("journal.workers must be at least 1"))
	}
	if c.Journal.QueueSize < 0 {
		errs = append(errs, errors.New("journal.queue_size must not be negative"))
	}
	if c.HTTPAddr == "" && c.GRPCAddr == "" {
		errs = append(errs, errors.New("at least one of http_addr and grpc_addr is required"))
	}
	if c.Storage.Idempotency && c.Storage.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("storage.idempotency_ttl must be positive"))
	}

	return errors.Join(errs...)
}

// NeedsMySQL reports whether a MySQL connection must be opened.
func (c *Config) NeedsMySQL() bool {
	return c.Storage.Backend == BackendMySQL || c.Journal.Sink == BackendMySQL
}

// NeedsRedis reports whether a Redis connection must be opened.
func (c *Config) NeedsRedis() bool {
	return c.Storage.Backend == BackendRedis
}
