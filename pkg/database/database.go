package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type DB struct {
	*sqlx.DB
	logger *zap.Logger
	driver string
}

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func New(config Config, logger *zap.Logger) (*DB, error) {
	switch config.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := sqlx.Connect(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", config.Driver, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not ping %s: %w", config.Driver, err)
	}

	logger.Info("Database connected",
		zap.String("driver", config.Driver),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns),
		zap.Duration("conn_max_lifetime", config.ConnMaxLifetime),
	)

	return &DB{
		DB:     db,
		logger: logger,
		driver: config.Driver,
	}, nil
}

// Driver returns the name the connection was opened with.
func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) Close() error {
	err := db.DB.Close()
	if err != nil {
		db.logger.Error("could not close database", zap.Error(err))
		return fmt.Errorf("could not close %s connection: %w", db.driver, err)
	}
	db.logger.Info("database connection closed", zap.String("driver", db.driver))
	return nil
}

func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// GetStats returns connection pool statistics.
func (db *DB) GetStats() map[string]any {
	stats := db.Stats()
	return map[string]any{
		"open_connections":    stats.OpenConnections,
		"in_use":              stats.InUse,
		"idle":                stats.Idle,
		"wait_count":          stats.WaitCount,
		"wait_duration_ms":    stats.WaitDuration.Milliseconds(),
		"max_idle_closed":     stats.MaxIdleClosed,
		"max_lifetime_closed": stats.MaxLifetimeClosed,
	}
}
