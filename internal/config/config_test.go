package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SERVICE_NAME", "DB_DRIVER", "SQLITE_PATH", "HTTP_PORT", "RABBITMQ_URL", "CORS_ALLOWED_ORIGINS", "MAX_LOAN_DAYS", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "library", cfg.ServiceName)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "library.db", cfg.DSN())
	assert.Equal(t, "8000", cfg.HTTPPort)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 365, cfg.MaxLoanDays)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/lib")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, https://library.example.com ,")
	t.Setenv("MAX_LOAN_DAYS", "60")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://u:p@db:5432/lib", cfg.DSN())
	assert.Equal(t, []string{"http://localhost:5173", "https://library.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 60, cfg.MaxLoanDays)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MAX_LOAN_DAYS", "-3")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 365, cfg.MaxLoanDays)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}
