// Package storetest opens migrated throwaway stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/config"
	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/Wuchinator/landing-analytics/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// NewDB returns a migrated SQLite database in a temp dir. A file is used
// rather than :memory: because every pooled connection would otherwise see
// its own empty database.
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	logger := zaptest.NewLogger(t)
	db, err := database.New(database.Config{
		Driver:          database.DriverSQLite,
		DSN:             config.SQLiteDSN(filepath.Join(t.TempDir(), "test.db"), 5*time.Second),
		MaxOpenConns:    4,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, store.Migrate(context.Background(), db, logger))
	return db
}
