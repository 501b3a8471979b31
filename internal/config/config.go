package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment    string
	LogLevel       string
	HTTPPort       string
	GRPCHealthPort string
	Store          StoreConfig
	Geocoder       GeocoderConfig
	HTTP           HTTPConfig
	Query          QueryConfig
	Kafka          KafkaConfig
}

type StoreConfig struct {
	Driver            string
	SQLitePath        string
	SQLiteBusyTimeout time.Duration
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	Postgres          PostgresConfig
}

type PostgresConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

type GeocoderConfig struct {
	Enabled   bool
	URL       string
	UserAgent string
	Timeout   time.Duration
}

type HTTPConfig struct {
	AllowedOrigins  []string
	TrackRateLimit  int
	ShutdownTimeout time.Duration
}

type QueryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	Topic            string
	ProducerRetries  int
	ProducerTimeout  time.Duration
	PublishTimeout   time.Duration
	RequiredAcks     int
	CompressionType  string
	MaxMessageBytes  int
	IdempotentWrites bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HTTPPort:       getEnv("HTTP_PORT", "3000"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "50051"),
	}

	cfg.Store = StoreConfig{
		Driver:            getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:        getEnv("SQLITE_PATH", "data/analytics.db"),
		SQLiteBusyTimeout: getEnvAsDuration("SQLITE_BUSY_TIMEOUT", 5*time.Second),
		MaxOpenConns:      getEnvAsInt("STORE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:      getEnvAsInt("STORE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:   getEnvAsDuration("STORE_CONN_MAX_LIFETIME", 5*time.Minute),
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			Database: getEnv("POSTGRES_DB", "analytics"),
			Username: getEnv("POSTGRES_USER", "admin"),
			Password: getEnv("POSTGRES_PASSWORD", "password"),
			SSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		},
	}

	cfg.Geocoder = GeocoderConfig{
		Enabled:   getEnvAsBool("GEOCODER_ENABLED", true),
		URL:       getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/reverse"),
		UserAgent: getEnv("GEOCODER_USER_AGENT", "landing-analytics/1.0"),
		Timeout:   getEnvAsDuration("GEOCODER_TIMEOUT", 5*time.Second),
	}

	cfg.HTTP = HTTPConfig{
		AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		TrackRateLimit:  getEnvAsInt("TRACK_RATE_LIMIT", 600), // per IP per minute, 0 disables
		ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
	}

	cfg.Query = QueryConfig{
		DefaultLimit: getEnvAsInt("QUERY_DEFAULT_LIMIT", 100),
		MaxLimit:     getEnvAsInt("QUERY_MAX_LIMIT", 1000),
	}

	brokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	cfg.Kafka = KafkaConfig{
		Enabled:          getEnvAsBool("KAFKA_ENABLED", false),
		Brokers:          strings.Split(brokers, ","),
		Topic:            getEnv("KAFKA_TOPIC_EVENTS", "landing-events"),
		ProducerRetries:  getEnvAsInt("KAFKA_PRODUCER_RETRIES", 3),
		ProducerTimeout:  getEnvAsDuration("KAFKA_PRODUCER_TIMEOUT", 10*time.Second),
		PublishTimeout:   getEnvAsDuration("KAFKA_PUBLISH_TIMEOUT", 2*time.Second),
		RequiredAcks:     getEnvAsInt("KAFKA_REQUIRED_ACKS", -1), // -1 = all in-sync replicas
		CompressionType:  getEnv("KAFKA_COMPRESSION", "snappy"),
		IdempotentWrites: getEnvAsBool("KAFKA_IDEMPOTENT", true),
		MaxMessageBytes:  getEnvAsInt("KAFKA_MAX_MESSAGE_BYTES", 1000000), // 1MB
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("STORE_DRIVER must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Query.DefaultLimit <= 0 || c.Query.MaxLimit < c.Query.DefaultLimit {
		return fmt.Errorf("invalid query limits: default=%d max=%d", c.Query.DefaultLimit, c.Query.MaxLimit)
	}
	if c.Geocoder.Enabled && c.Geocoder.Timeout <= 0 {
		return fmt.Errorf("GEOCODER_TIMEOUT must be positive")
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *StoreConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.Postgres.PostgresDSN()
	}
	return SQLiteDSN(c.SQLitePath, c.SQLiteBusyTimeout)
}

func (c *PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// SQLiteDSN builds a modernc.org/sqlite DSN with WAL and a busy timeout so
// concurrent writers wait instead of failing with SQLITE_BUSY.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
