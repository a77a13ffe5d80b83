package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"RENDERD_APP_NAME":                os.Getenv("RENDERD_APP_NAME"),
		"RENDERD_APP_ENV":                 os.Getenv("RENDERD_APP_ENV"),
		"RENDERD_APP_PORT":                os.Getenv("RENDERD_APP_PORT"),
		"RENDERD_DATABASE_HOST":           os.Getenv("RENDERD_DATABASE_HOST"),
		"RENDERD_DATABASE_PORT":           os.Getenv("RENDERD_DATABASE_PORT"),
		"RENDERD_DATABASE_PASSWORD":       os.Getenv("RENDERD_DATABASE_PASSWORD"),
		"RENDERD_DATABASE_SSLMODE":        os.Getenv("RENDERD_DATABASE_SSLMODE"),
		"RENDERD_RENDER_MAX_RETRIES":      os.Getenv("RENDERD_RENDER_MAX_RETRIES"),
		"RENDERD_RENDER_SETTLE_TIMEOUT":   os.Getenv("RENDERD_RENDER_SETTLE_TIMEOUT"),
		"RENDERD_STORAGE_BACKEND":         os.Getenv("RENDERD_STORAGE_BACKEND"),
		"RENDERD_STORAGE_BUCKET":          os.Getenv("RENDERD_STORAGE_BUCKET"),
		"RENDERD_STORAGE_ACCESS_KEY":      os.Getenv("RENDERD_STORAGE_ACCESS_KEY"),
		"RENDERD_STORAGE_SECRET_KEY":      os.Getenv("RENDERD_STORAGE_SECRET_KEY"),
		"RENDERD_TELEMETRY_SAMPLING_RATIO": os.Getenv("RENDERD_TELEMETRY_SAMPLING_RATIO"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "renderd", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "renderd", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)

		assert.Equal(t, 10*time.Second, cfg.Render.StartupTimeout)
		assert.Equal(t, 5*time.Second, cfg.Render.FetchTimeout)
		assert.Equal(t, 15*time.Second, cfg.Render.SettleTimeout)
		assert.Equal(t, 30*time.Second, cfg.Render.PaginateTimeout)
		assert.Equal(t, 20*time.Second, cfg.Render.UploadTimeout)
		assert.Equal(t, 3*time.Second, cfg.Render.AssetWait)
		assert.Equal(t, 1, cfg.Render.MaxRetries)
		assert.True(t, cfg.Render.PrintBackground)
		assert.Equal(t, 1.0, cfg.Render.Scale)
		assert.Equal(t, 15.0, cfg.Render.MarginMM)

		assert.Equal(t, "filesystem", cfg.Storage.Backend)
		assert.Equal(t, "/data/documents", cfg.Storage.BasePath)
		assert.Equal(t, 15*time.Minute, cfg.Storage.PresignExpiration)
	})

	t.Run("loads values from environment variables with RENDERD prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_APP_NAME", "renderd-test")
		os.Setenv("RENDERD_APP_PORT", "9000")
		os.Setenv("RENDERD_DATABASE_HOST", "testdb.local")
		os.Setenv("RENDERD_DATABASE_PORT", "5433")
		os.Setenv("RENDERD_RENDER_SETTLE_TIMEOUT", "7s")
		os.Setenv("RENDERD_RENDER_MAX_RETRIES", "2")
		os.Setenv("RENDERD_STORAGE_BACKEND", "s3")
		os.Setenv("RENDERD_STORAGE_BUCKET", "artifacts")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "renderd-test", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 7*time.Second, cfg.Render.SettleTimeout)
		assert.Equal(t, 2, cfg.Render.MaxRetries)
		assert.Equal(t, "s3", cfg.Storage.Backend)
		assert.Equal(t, "artifacts", cfg.Storage.Bucket)
	})

	t.Run("max_retries can be explicitly zero", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_RENDER_MAX_RETRIES", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Render.MaxRetries)
	})

	t.Run("rejects out-of-range max_retries", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_RENDER_MAX_RETRIES", "5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "render.max_retries")
	})

	t.Run("rejects unknown storage backend", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_STORAGE_BACKEND", "ftp")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.backend")
	})

	t.Run("s3 backend requires a bucket", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_STORAGE_BACKEND", "s3")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})

	t.Run("production requires database password and TLS", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")

		os.Setenv("RENDERD_DATABASE_PASSWORD", "secret")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode")
	})

	t.Run("production s3 requires credentials", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_APP_ENV", "production")
		os.Setenv("RENDERD_DATABASE_PASSWORD", "secret")
		os.Setenv("RENDERD_DATABASE_SSLMODE", "require")
		os.Setenv("RENDERD_STORAGE_BACKEND", "s3")
		os.Setenv("RENDERD_STORAGE_BUCKET", "artifacts")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.access_key")

		os.Setenv("RENDERD_STORAGE_ACCESS_KEY", "AK")
		os.Setenv("RENDERD_STORAGE_SECRET_KEY", "SK")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "s3", cfg.Storage.Backend)
	})

	t.Run("rejects invalid sampling ratio", func(t *testing.T) {
		clearEnv()
		os.Setenv("RENDERD_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "renderd",
		Password: "p@ss/word",
		DBName:   "renderd",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()

	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// Special characters in the password must be escaped
	assert.NotContains(t, dsn, "p@ss/word")
}
