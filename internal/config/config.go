package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	BackendFirestore = "firestore"
	BackendMySQL     = "mysql"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StoreBackend string        `env:"STORE_BACKEND" envDefault:"firestore"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	StoreRetries uint64        `env:"STORE_RETRIES" envDefault:"3"`

	DBUser                 string `env:"DB_USER"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBHost                 string `env:"DB_HOST"` // e.g. tcp(host:3306), unix(/cloudsql/instance) or a bare host
	DBName                 string `env:"DB_NAME"`
	DBPort                 string `env:"DB_PORT"`
	DBSSLMode              string `env:"DB_SSLMODE" envDefault:"disable"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	FirebaseProjectID     string `env:"FIREBASE_PROJECT_ID,required,notEmpty"`
	FirebaseAPIKey        string `env:"FIREBASE_API_KEY"`
	GoogleCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	GCSBucket    string        `env:"GCS_BUCKET"`
	UploadURLTTL time.Duration `env:"UPLOAD_URL_TTL" envDefault:"15m"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	FanoutLimit    int      `env:"FANOUT_LIMIT" envDefault:"8"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFirestore, BackendMemory:
	case BackendMySQL, BackendPostgres:
		if c.DBUser == "" || c.DBName == "" {
			return fmt.Errorf("store backend %s requires DB_USER and DB_NAME", c.StoreBackend)
		}
		if c.DBHost == "" && c.InstanceConnectionName == "" {
			return fmt.Errorf("store backend %s requires DB_HOST or INSTANCE_CONNECTION_NAME", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	if c.FanoutLimit <= 0 {
		c.FanoutLimit = 8
	}
	if c.DBPort == "" {
		if c.StoreBackend == BackendPostgres {
			c.DBPort = "5432"
		} else {
			c.DBPort = "3306"
		}
	}
	return nil
}
