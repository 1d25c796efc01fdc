package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_URI", "DB_HOST", "DB_PORT", "DB_USER", "DB_DATABASE",
		"REDIS_URL", "QUEUE_DRIVER", "SESSION_TTL", "FOLDER_PATH", "QUEUE_MAX_ATTEMPTS", "WORKER_CONCURRENCY", "THUMBNAIL_MAX_PIXELS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgresql://root@localhost:26257?sslmode=disable", cfg.DBURI)
	assert.Equal(t, "files_manager", cfg.DBDatabase)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "/tmp/files_manager", cfg.FolderPath)
	assert.Equal(t, 3, cfg.QueueMaxAttempts)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.Equal(t, int64(50_000_000), cfg.ThumbnailMaxPixels)
}

func Test_LoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "mongo")
	t.Setenv("DB_URI", "")
	t.Setenv("DB_HOST", "mongo.local")
	t.Setenv("DB_PORT", "")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("WORKER_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://mongo.local:27017", cfg.DBURI)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
}

func Test_LoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBDriver")
}

func Test_ValidateMemoryNeedsNoURI(t *testing.T) {
	cfg := &Config{
		Port:              "5000",
		MaxUploadBytes:    1,
		ShutdownTimeout:   time.Second,
		DBDriver:          "memory",
		QueueDriver:       "memory",
		SessionTTL:        time.Hour,
		FolderPath:        t.TempDir(),
		QueueMaxAttempts:  1,
		WorkerConcurrency: 1,

		ThumbnailMaxPixels: 1,
	}
	assert.NoError(t, Validate(cfg))

	cfg.QueueMaxAttempts = 0
	assert.Error(t, Validate(cfg))

	cfg.QueueMaxAttempts = 1
	cfg.ThumbnailMaxPixels = 0
	assert.Error(t, Validate(cfg))
}
