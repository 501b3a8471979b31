package query

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExportHeader is the first CSV row written by Export.
var ExportHeader = []string{
	"id", "session_id", "timestamp", "user_agent", "screen_width", "screen_height",
	"referrer", "latitude", "longitude", "location_accuracy", "municipality",
	"region", "country", "language", "platform", "connection_type", "downlink",
	"rtt", "page_load_time", "timezone", "time_on_page", "scroll_depth",
	"active_time", "clicked_buttons", "video_events_count", "max_watch_time",
}

// Export writes one CSV row per session, newest first. Missing values are
// empty cells.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	defer s.metrics.ObserveQuery("export", time.Now())

	rows, err := s.repo.ExportRows(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(exportRecord(&rows[i])); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	s.logger.Info("Sessions exported", zap.Int("rows", len(rows)))
	return nil
}

func exportRecord(r *ExportRow) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.SessionID,
		r.Timestamp.String(),
		str(r.UserAgent),
		integer(r.ScreenWidth),
		integer(r.ScreenHeight),
		str(r.Referrer),
		float(r.Latitude),
		float(r.Longitude),
		float(r.LocationAccuracy),
		str(r.Municipality),
		str(r.Region),
		str(r.Country),
		str(r.Language),
		str(r.Platform),
		str(r.ConnectionType),
		float(r.Downlink),
		integer(r.RTT),
		integer(r.PageLoadTime),
		str(r.Timezone),
		strconv.FormatInt(r.TimeOnPage, 10),
		strconv.FormatInt(r.ScrollDepth, 10),
		strconv.FormatInt(r.ActiveTime, 10),
		strings.Join(r.ClickedButtons, ";"),
		strconv.FormatInt(r.VideoEventsCount, 10),
		float(r.MaxWatchTime),
	}
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func integer(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
