package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Geocoder.Timeout)
	assert.Equal(t, 100, cfg.Query.DefaultLimit)
	assert.Equal(t, 2*time.Second, cfg.Kafka.PublishTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.AllowedOrigins)
	assert.Contains(t, cfg.Store.DSN(), "file:")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("GEOCODER_TIMEOUT", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_PUBLISH_TIMEOUT", "300ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Geocoder.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 300*time.Millisecond, cfg.Kafka.PublishTimeout)
	assert.Contains(t, cfg.Store.DSN(), "host=db")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	dsn := SQLiteDSN("data/a.db", 1500*time.Millisecond)
	assert.Equal(t, "file:data/a.db?_pragma=busy_timeout%281500%29&_pragma=journal_mode%28WAL%29&_pragma=synchronous%28NORMAL%29", dsn)
}
