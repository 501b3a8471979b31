package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Wuchinator/landing-analytics/pkg/database"
	"go.uber.org/zap"
)

// Table names shared by the repositories.
const (
	TableSessions          = "sessions"
	TableVideoEvents       = "video_events"
	TableButtonClicks      = "button_clicks"
	TableFormSubmissions   = "form_submissions"
	TableInteractionEvents = "interaction_events"
)

// Event tables reference sessions.session_id without a hard foreign key:
// facts may arrive before the session beacon.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id {{pk}},
		session_id TEXT UNIQUE NOT NULL,
		timestamp TEXT NOT NULL,
		user_agent TEXT,
		screen_width INTEGER,
		screen_height INTEGER,
		referrer TEXT,
		latitude {{real}},
		longitude {{real}},
		location_accuracy {{real}},
		municipality TEXT,
		region TEXT,
		country TEXT,
		language TEXT,
		platform TEXT,
		connection_type TEXT,
		downlink {{real}},
		rtt INTEGER,
		page_load_time {{bigint}},
		timezone TEXT,
		time_on_page {{bigint}} NOT NULL DEFAULT 0,
		scroll_depth INTEGER NOT NULL DEFAULT 0,
		active_time {{bigint}} NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_timestamp ON sessions (timestamp)`,

	`CREATE TABLE IF NOT EXISTS video_events (
		id {{pk}},
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		video_time {{real}},
		total_watch_time {{real}},
		percentage_watched {{real}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_video_events_session ON video_events (session_id)`,

	`CREATE TABLE IF NOT EXISTS button_clicks (
		id {{pk}},
		session_id TEXT NOT NULL,
		button_type TEXT NOT NULL,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_button_clicks_session ON button_clicks (session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_button_clicks_timestamp ON button_clicks (timestamp)`,

	`CREATE TABLE IF NOT EXISTS form_submissions (
		id {{pk}},
		session_id TEXT NOT NULL,
		name TEXT,
		email TEXT,
		phone TEXT,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_form_submissions_session ON form_submissions (session_id)`,

	`CREATE TABLE IF NOT EXISTS interaction_events (
		id {{pk}},
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		details TEXT,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interaction_events_session ON interaction_events (session_id)`,
}

func dialect(driver string) (*strings.Replacer, error) {
	switch driver {
	case database.DriverSQLite:
		return strings.NewReplacer(
			"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{real}}", "REAL",
			"{{bigint}}", "INTEGER",
		), nil
	case database.DriverPostgres:
		return strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{real}}", "DOUBLE PRECISION",
			"{{bigint}}", "BIGINT",
		), nil
	default:
		return nil, fmt.Errorf("no schema for driver %q", driver)
	}
}

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, db *database.DB, logger *zap.Logger) error {
	r, err := dialect(db.Driver())
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	logger.Info("Database schema ready",
		zap.String("driver", db.Driver()),
		zap.Int("statements", len(schema)),
	)
	return nil
}
