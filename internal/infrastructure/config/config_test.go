package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "docengine", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "docengine", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())

		assert.Equal(t, SequenceStrategyDatabase, cfg.Conversion.SequenceStrategy)
		assert.Equal(t, 5, cfg.Conversion.MaxSequenceAttempts)
		assert.Equal(t, 50*time.Millisecond, cfg.Conversion.TransientRetryBackoff)
		assert.Equal(t, 30*time.Second, cfg.Conversion.LockTTL)
		assert.False(t, cfg.Conversion.LockEnabled)
		assert.True(t, decimal.NewFromInt(10).Equal(cfg.Conversion.BreakagePercent()))
	})

	t.Run("loads values from environment variables with DOCENGINE prefix", func(t *testing.T) {
		t.Setenv("DOCENGINE_APP_NAME", "test-app")
		t.Setenv("DOCENGINE_DATABASE_DRIVER", "sqlite")
		t.Setenv("DOCENGINE_DATABASE_PATH", ":memory:")
		t.Setenv("DOCENGINE_REDIS_ENABLED", "true")
		t.Setenv("DOCENGINE_REDIS_PORT", "6380")
		t.Setenv("DOCENGINE_CONVERSION_SEQUENCE_STRATEGY", "redis")
		t.Setenv("DOCENGINE_CONVERSION_MAX_SEQUENCE_ATTEMPTS", "8")
		t.Setenv("DOCENGINE_CONVERSION_TRANSIENT_RETRY_BACKOFF", "200ms")
		t.Setenv("DOCENGINE_CONVERSION_LOCK_ENABLED", "true")
		t.Setenv("DOCENGINE_CONVERSION_DEFAULT_BREAKAGE_PERCENT", "0")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.DSN())
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 6380, cfg.Redis.Port)
		assert.Equal(t, SequenceStrategyRedis, cfg.Conversion.SequenceStrategy)
		assert.Equal(t, 8, cfg.Conversion.MaxSequenceAttempts)
		assert.Equal(t, 200*time.Millisecond, cfg.Conversion.TransientRetryBackoff)
		assert.True(t, cfg.Conversion.LockEnabled)
		assert.True(t, cfg.Conversion.BreakagePercent().IsZero())
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		t.Setenv("DOCENGINE_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unknown sequence strategy", func(t *testing.T) {
		t.Setenv("DOCENGINE_CONVERSION_SEQUENCE_STRATEGY", "uuid")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conversion.sequence_strategy")
	})

	t.Run("redis strategy requires redis", func(t *testing.T) {
		t.Setenv("DOCENGINE_CONVERSION_SEQUENCE_STRATEGY", "redis")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires redis.enabled=true")
	})

	t.Run("conversion lock requires redis", func(t *testing.T) {
		t.Setenv("DOCENGINE_CONVERSION_LOCK_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conversion.lock_enabled")
	})

	t.Run("rejects negative sequence attempts", func(t *testing.T) {
		t.Setenv("DOCENGINE_CONVERSION_MAX_SEQUENCE_ATTEMPTS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_sequence_attempts must be positive")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("DOCENGINE_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("DOCENGINE_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("DOCENGINE_APP_ENV", "production")
		t.Setenv("DOCENGINE_DATABASE_PASSWORD", "secure-password")
		t.Setenv("DOCENGINE_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("DOCENGINE_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("DOCENGINE_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects sqlite in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("DOCENGINE_DATABASE_DRIVER", "sqlite")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sqlite is not allowed in production")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid postgres DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverPostgres, Host: "localhost", Port: 5432, User: "user", Password: "pass@word#123", DBName: "db", SSLMode: "disable"}
		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})

	t.Run("sqlite uses file path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverSQLite, Path: "/var/lib/docengine/data.db"}
		assert.Equal(t, "/var/lib/docengine/data.db", cfg.DSN())
	})
}
