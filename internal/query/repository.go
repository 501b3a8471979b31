package query

import (
	"context"
	"fmt"

	"github.com/Wuchinator/landing-analytics/internal/event"
	"github.com/Wuchinator/landing-analytics/internal/session"
	"github.com/Wuchinator/landing-analytics/pkg/database"
	"go.uber.org/zap"
)

type Repository interface {
	CountSessions(ctx context.Context) (int64, error)
	AvgVideoTime(ctx context.Context) (float64, error)
	ClicksByType(ctx context.Context) ([]ClickCount, error)
	CountForms(ctx context.Context) (int64, error)
	SessionAverages(ctx context.Context) (*SessionAverages, error)
	Technical(ctx context.Context) (*Technical, error)
	Sessions(ctx context.Context, limit int) ([]session.Session, error)
	FormSubmissions(ctx context.Context, limit int) ([]FormSubmission, error)
	VideoStats(ctx context.Context) ([]VideoStat, error)
	Clicks(ctx context.Context, limit int) ([]event.ButtonClick, error)
	ClicksTimeline(ctx context.Context) ([]ClickDay, error)
	TimeDistribution(ctx context.Context) ([]TimeBucket, error)
	Locations(ctx context.Context) ([]Location, error)
	Regions(ctx context.Context) ([]RegionCount, error)
	Interactions(ctx context.Context, limit int) ([]event.InteractionEvent, error)
	ExportRows(ctx context.Context) ([]ExportRow, error)
}

type repository struct {
	db     *database.DB
	logger *zap.Logger
}

func NewRepository(db *database.DB, logger *zap.Logger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

func (r *repository) get(ctx context.Context, name string, dest any, query string, args ...any) error {
	if err := r.db.GetContext(ctx, dest, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Query failed", zap.String("query", name), zap.Error(err))
		return fmt.Errorf("failed to get %s: %w", name, err)
	}
	return nil
}

func (r *repository) selectRows(ctx context.Context, name string, dest any, query string, args ...any) error {
	if err := r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Query failed", zap.String("query", name), zap.Error(err))
		return fmt.Errorf("failed to get %s: %w", name, err)
	}
	return nil
}

func (r *repository) CountSessions(ctx context.Context) (int64, error) {
	var n int64
	err := r.get(ctx, "session count", &n, `SELECT COUNT(*) FROM sessions`)
	return n, err
}

func (r *repository) AvgVideoTime(ctx context.Context) (float64, error) {
	var avg float64
	err := r.get(ctx, "average video time", &avg, `
		SELECT COALESCE(AVG(total_watch_time), 0)
		FROM video_events
		WHERE event_type IN ('ended', 'pause')
	`)
	return avg, err
}

func (r *repository) ClicksByType(ctx context.Context) ([]ClickCount, error) {
	clicks := []ClickCount{}
	err := r.selectRows(ctx, "clicks by type", &clicks, `
		SELECT button_type, COUNT(*) AS count
		FROM button_clicks
		GROUP BY button_type
		ORDER BY count DESC, button_type
	`)
	return clicks, err
}

func (r *repository) CountForms(ctx context.Context) (int64, error) {
	var n int64
	err := r.get(ctx, "form count", &n, `SELECT COUNT(*) FROM form_submissions`)
	return n, err
}

// SessionAverages averages each behavioral metric over the sessions where
// that metric is positive.
func (r *repository) SessionAverages(ctx context.Context) (*SessionAverages, error) {
	var avg SessionAverages
	err := r.get(ctx, "session averages", &avg, `
		SELECT
			COALESCE(AVG(CASE WHEN time_on_page > 0 THEN time_on_page END), 0) AS avg_time_on_page,
			COALESCE(AVG(CASE WHEN active_time > 0 THEN active_time END), 0) AS avg_active_time,
			COALESCE(AVG(CASE WHEN scroll_depth > 0 THEN scroll_depth END), 0) AS avg_scroll_depth
		FROM sessions
	`)
	if err != nil {
		return nil, err
	}
	return &avg, nil
}

// Technical classifies a session as mobile when its user agent mentions
// Mobile, Android or iPhone. Everything else, including a missing user
// agent, is desktop.
func (r *repository) Technical(ctx context.Context) (*Technical, error) {
	var t Technical
	err := r.get(ctx, "technical breakdown", &t, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE
				WHEN LOWER(user_agent) LIKE '%mobile%'
				  OR LOWER(user_agent) LIKE '%android%'
				  OR LOWER(user_agent) LIKE '%iphone%'
				THEN 1 ELSE 0 END), 0) AS mobile,
			COALESCE(SUM(CASE WHEN latitude IS NOT NULL AND longitude IS NOT NULL THEN 1 ELSE 0 END), 0) AS with_location,
			COALESCE(AVG(CASE WHEN page_load_time > 0 THEN page_load_time END), 0) AS avg_load_time
		FROM sessions
	`)
	if err != nil {
		return nil, err
	}
	t.DesktopCount = t.Total - t.MobileCount
	return &t, nil
}

func (r *repository) Sessions(ctx context.Context, limit int) ([]session.Session, error) {
	sessions := []session.Session{}
	err := r.selectRows(ctx, "sessions", &sessions,
		`SELECT `+session.Columns+` FROM sessions ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	return sessions, err
}

func (r *repository) FormSubmissions(ctx context.Context, limit int) ([]FormSubmission, error) {
	forms := []FormSubmission{}
	err := r.selectRows(ctx, "form submissions", &forms, `
		SELECT
			f.id, f.session_id, f.name, f.email, f.phone, f.timestamp,
			s.municipality, s.region, s.country, s.user_agent, s.referrer,
			s.connection_type, s.platform, s.language
		FROM form_submissions f
		LEFT JOIN sessions s ON f.session_id = s.session_id
		ORDER BY f.timestamp DESC, f.id DESC
		LIMIT ?
	`, limit)
	return forms, err
}

func (r *repository) VideoStats(ctx context.Context) ([]VideoStat, error) {
	stats := []VideoStat{}
	err := r.selectRows(ctx, "video stats", &stats, `
		SELECT
			event_type,
			COUNT(*) AS count,
			COALESCE(AVG(total_watch_time), 0) AS avg_watch_time,
			COALESCE(AVG(percentage_watched), 0) AS avg_percentage
		FROM video_events
		GROUP BY event_type
		ORDER BY event_type
	`)
	return stats, err
}

func (r *repository) Clicks(ctx context.Context, limit int) ([]event.ButtonClick, error) {
	clicks := []event.ButtonClick{}
	err := r.selectRows(ctx, "clicks", &clicks, `
		SELECT id, session_id, button_type, timestamp
		FROM button_clicks
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	return clicks, err
}

// ClicksTimeline groups by the date prefix of the stored UTC timestamp.
func (r *repository) ClicksTimeline(ctx context.Context) ([]ClickDay, error) {
	days := []ClickDay{}
	err := r.selectRows(ctx, "clicks timeline", &days, `
		SELECT SUBSTR(timestamp, 1, 10) AS click_date, button_type, COUNT(*) AS count
		FROM button_clicks
		GROUP BY SUBSTR(timestamp, 1, 10), button_type
		ORDER BY click_date DESC, button_type
	`)
	return days, err
}

// TimeDistribution returns only the non-empty buckets.
func (r *repository) TimeDistribution(ctx context.Context) ([]TimeBucket, error) {
	buckets := []TimeBucket{}
	err := r.selectRows(ctx, "time distribution", &buckets, `
		SELECT
			CASE
				WHEN time_on_page < 10 THEN '0-10s'
				WHEN time_on_page < 30 THEN '10-30s'
				WHEN time_on_page < 60 THEN '30-60s'
				WHEN time_on_page < 180 THEN '1-3m'
				ELSE '3m+'
			END AS duration_bucket,
			COUNT(*) AS count
		FROM sessions
		WHERE time_on_page > 0
		GROUP BY 1
	`)
	return buckets, err
}

func (r *repository) Locations(ctx context.Context) ([]Location, error) {
	locations := []Location{}
	err := r.selectRows(ctx, "locations", &locations, `
		SELECT
			ROUND(CAST(s.latitude AS NUMERIC), 2) AS latitude,
			ROUND(CAST(s.longitude AS NUMERIC), 2) AS longitude,
			MAX(s.municipality) AS municipality,
			MAX(s.region) AS region,
			COUNT(DISTINCT s.session_id) AS visits,
			COUNT(DISTINCT f.session_id) AS leads
		FROM sessions s
		LEFT JOIN form_submissions f ON f.session_id = s.session_id
		WHERE s.latitude IS NOT NULL AND s.longitude IS NOT NULL
		GROUP BY 1, 2
		ORDER BY visits DESC, 1, 2
	`)
	return locations, err
}

func (r *repository) Regions(ctx context.Context) ([]RegionCount, error) {
	regions := []RegionCount{}
	err := r.selectRows(ctx, "regions", &regions, `
		SELECT COALESCE(region, ?) AS region, COUNT(*) AS count
		FROM sessions
		GROUP BY 1
		ORDER BY count DESC, 1
	`, UnknownRegion)
	return regions, err
}

func (r *repository) Interactions(ctx context.Context, limit int) ([]event.InteractionEvent, error) {
	interactions := []event.InteractionEvent{}
	err := r.selectRows(ctx, "interactions", &interactions, `
		SELECT id, session_id, event_type, details, timestamp
		FROM interaction_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	return interactions, err
}

// ExportRows loads every session newest first with its distinct clicked
// buttons and video summary.
func (r *repository) ExportRows(ctx context.Context) ([]ExportRow, error) {
	var sessions []session.Session
	if err := r.selectRows(ctx, "export sessions", &sessions,
		`SELECT `+session.Columns+` FROM sessions ORDER BY timestamp DESC, id DESC`); err != nil {
		return nil, err
	}

	var clicks []struct {
		SessionID  string `db:"session_id"`
		ButtonType string `db:"button_type"`
	}
	if err := r.selectRows(ctx, "export clicks", &clicks, `
		SELECT DISTINCT session_id, button_type
		FROM button_clicks
		ORDER BY session_id, button_type
	`); err != nil {
		return nil, err
	}

	var videos []struct {
		SessionID    string   `db:"session_id"`
		Count        int64    `db:"video_events_count"`
		MaxWatchTime *float64 `db:"max_watch_time"`
	}
	if err := r.selectRows(ctx, "export videos", &videos, `
		SELECT session_id, COUNT(*) AS video_events_count, MAX(total_watch_time) AS max_watch_time
		FROM video_events
		GROUP BY session_id
	`); err != nil {
		return nil, err
	}

	buttons := make(map[string][]string)
	for _, c := range clicks {
		buttons[c.SessionID] = append(buttons[c.SessionID], c.ButtonType)
	}

	rows := make([]ExportRow, 0, len(sessions))
	index := make(map[string]int, len(sessions))
	for _, s := range sessions {
		index[s.SessionID] = len(rows)
		rows = append(rows, ExportRow{Session: s, ClickedButtons: buttons[s.SessionID]})
	}
	for _, v := range videos {
		if i, ok := index[v.SessionID]; ok {
			rows[i].VideoEventsCount = v.Count
			rows[i].MaxWatchTime = v.MaxWatchTime
		}
	}
	return rows, nil
}
