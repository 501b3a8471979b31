package query

import (
	"github.com/Wuchinator/landing-analytics/internal/session"
	"github.com/Wuchinator/landing-analytics/internal/store"
)

type ClickCount struct {
	ButtonType string `db:"button_type" json:"button_type"`
	Count      int64  `db:"count" json:"count"`
}

// Overview is the headline funnel. Every average over an empty set is 0.
type Overview struct {
	TotalSessions  int64        `json:"totalSessions"`
	AvgVideoTime   float64      `json:"avgVideoTime"`
	ClicksByType   []ClickCount `json:"clicksByType"`
	TotalForms     int64        `json:"totalForms"`
	AvgTimeOnPage  float64      `json:"avgTimeOnPage"`
	AvgActiveTime  float64      `json:"avgActiveTime"`
	AvgScrollDepth float64      `json:"avgScrollDepth"`
	// ConversionRate is form submissions per 100 sessions.
	ConversionRate float64 `json:"conversionRate"`
}

type SessionAverages struct {
	TimeOnPage  float64 `db:"avg_time_on_page"`
	ActiveTime  float64 `db:"avg_active_time"`
	ScrollDepth float64 `db:"avg_scroll_depth"`
}

// Technical splits sessions by device class. Mobile and desktop always
// add up to the session total.
type Technical struct {
	AvgLoadTime  float64 `db:"avg_load_time" json:"avgLoadTime"`
	MobileCount  int64   `db:"mobile" json:"mobileCount"`
	DesktopCount int64   `db:"-" json:"desktopCount"`
	WithLocation int64   `db:"with_location" json:"withLocation"`
	Total        int64   `db:"total" json:"-"`
}

// FormSubmission is a submission with the context of its session, which
// may be missing.
type FormSubmission struct {
	ID             int64           `db:"id" json:"id"`
	SessionID      string          `db:"session_id" json:"session_id"`
	Name           *string         `db:"name" json:"name"`
	Email          *string         `db:"email" json:"email"`
	Phone          *string         `db:"phone" json:"phone"`
	Timestamp      store.Timestamp `db:"timestamp" json:"timestamp"`
	Municipality   *string         `db:"municipality" json:"municipality"`
	Region         *string         `db:"region" json:"region"`
	Country        *string         `db:"country" json:"country"`
	UserAgent      *string         `db:"user_agent" json:"user_agent"`
	Referrer       *string         `db:"referrer" json:"referrer"`
	ConnectionType *string         `db:"connection_type" json:"connection_type"`
	Platform       *string         `db:"platform" json:"platform"`
	Language       *string         `db:"language" json:"language"`
}

type VideoStat struct {
	EventType     string  `db:"event_type" json:"event_type"`
	Count         int64   `db:"count" json:"count"`
	AvgWatchTime  float64 `db:"avg_watch_time" json:"avg_watch_time"`
	AvgPercentage float64 `db:"avg_percentage" json:"avg_percentage"`
}

// ClickDay counts clicks of one button type on one UTC calendar date.
type ClickDay struct {
	Date       string `db:"click_date" json:"date"`
	ButtonType string `db:"button_type" json:"button_type"`
	Count      int64  `db:"count" json:"count"`
}

// Time-on-page buckets in display order.
var TimeBuckets = []string{"0-10s", "10-30s", "30-60s", "1-3m", "3m+"}

type TimeBucket struct {
	Bucket string `db:"duration_bucket" json:"duration_bucket"`
	Count  int64  `db:"count" json:"count"`
}

// Location is a cluster of sessions whose coordinates round to the same
// two decimals.
type Location struct {
	Latitude     float64 `db:"latitude" json:"latitude"`
	Longitude    float64 `db:"longitude" json:"longitude"`
	Municipality *string `db:"municipality" json:"municipality"`
	Region       *string `db:"region" json:"region"`
	Visits       int64   `db:"visits" json:"visits"`
	Leads        int64   `db:"leads" json:"leads"`
}

// UnknownRegion labels sessions without an enriched region.
const UnknownRegion = "unknown"

type RegionCount struct {
	Region string `db:"region" json:"region"`
	Count  int64  `db:"count" json:"count"`
}

// ExportRow flattens one session with its click and video summary.
type ExportRow struct {
	session.Session
	ClickedButtons   []string
	VideoEventsCount int64
	MaxWatchTime     *float64
}
