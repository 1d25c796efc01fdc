package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port            string        `validate:"required,numeric"`
	MaxUploadBytes  int64         `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Metadata store
	DBDriver   string `validate:"oneof=postgres mongo memory"`
	DBURI      string `validate:"required_unless=DBDriver memory"`
	DBDatabase string `validate:"required_unless=DBDriver memory"`

	// Session cache and queue broker
	RedisURL    string        `validate:"required_if=QueueDriver redis"`
	QueueDriver string        `validate:"oneof=redis memory"`
	SessionTTL  time.Duration `validate:"gt=0"`

	FolderPath        string `validate:"required"`
	QueueMaxAttempts  int    `validate:"gte=1"`
	WorkerConcurrency int    `validate:"gte=1"`

	// Images declaring more pixels than this are never decoded
	ThumbnailMaxPixels int64 `validate:"gt=0"`
}

var validate = validator.New()

// Load reads .env (if present) and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := getEnv("DB_DRIVER", "postgres")
	cfg := &Config{
		Port:            getEnv("PORT", "5000"),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 1024<<20),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DBDriver:   driver,
		DBURI:      getEnv("DB_URI", defaultURI(driver)),
		DBDatabase: getEnv("DB_DATABASE", "files_manager"),

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		QueueDriver: getEnv("QUEUE_DRIVER", "redis"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 24*time.Hour),

		FolderPath:        getEnv("FOLDER_PATH", "/tmp/files_manager"),
		QueueMaxAttempts:  int(getEnvInt64("QUEUE_MAX_ATTEMPTS", 3)),
		WorkerConcurrency: int(getEnvInt64("WORKER_CONCURRENCY", 1)),

		ThumbnailMaxPixels: getEnvInt64("THUMBNAIL_MAX_PIXELS", 50_000_000),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and reports the first failure
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config: %s failed on '%s' (value: %v)", e.Field(), e.Tag(), e.Value())
		}
		return err
	}
	return nil
}

func defaultURI(driver string) string {
	host := getEnv("DB_HOST", "localhost")
	switch driver {
	case "mongo":
		return fmt.Sprintf("mongodb://%s:%s", host, getEnv("DB_PORT", "27017"))
	case "postgres":
		return fmt.Sprintf("postgresql://%s@%s:%s?sslmode=disable", getEnv("DB_USER", "root"), host, getEnv("DB_PORT", "26257"))
	}
	return ""
}

func getEnv(envName, defValue string) string {
	env := os.Getenv(envName)
	if env == "" {
		return defValue
	}
	return env
}

func getEnvInt64(envName string, defValue int64) int64 {
	v, err := strconv.ParseInt(getEnv(envName, ""), 10, 64)
	if err != nil {
		return defValue
	}
	return v
}

func getEnvDuration(envName string, defValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(envName, ""))
	if err != nil {
		return defValue
	}
	return d
}
