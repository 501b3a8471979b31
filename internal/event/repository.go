package event

import (
	"context"
	"fmt"
	"strings"

	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/Wuchinator/landing-analytics/pkg/database"
	"go.uber.org/zap"
)

type Repository interface {
	CreateVideo(ctx context.Context, e *VideoEvent) (int64, error)
	CreateClick(ctx context.Context, c *ButtonClick) (int64, error)
	CreateForm(ctx context.Context, f *FormSubmission) (int64, error)
	CreateInteraction(ctx context.Context, e *InteractionEvent) (int64, error)
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

func (r *repository) CreateVideo(ctx context.Context, e *VideoEvent) (int64, error) {
	return r.insert(ctx, store.TableVideoEvents,
		[]string{"session_id", "event_type", "timestamp", "video_time", "total_watch_time", "percentage_watched"},
		e.SessionID, e.EventType, e.Timestamp, e.VideoTime, e.TotalWatchTime, e.PercentageWatched)
}

func (r *repository) CreateClick(ctx context.Context, c *ButtonClick) (int64, error) {
	return r.insert(ctx, store.TableButtonClicks,
		[]string{"session_id", "button_type", "timestamp"},
		c.SessionID, c.ButtonType, c.Timestamp)
}

func (r *repository) CreateForm(ctx context.Context, f *FormSubmission) (int64, error) {
	return r.insert(ctx, store.TableFormSubmissions,
		[]string{"session_id", "name", "email", "phone", "timestamp"},
		f.SessionID, f.Name, f.Email, f.Phone, f.Timestamp)
}

func (r *repository) CreateInteraction(ctx context.Context, e *InteractionEvent) (int64, error) {
	return r.insert(ctx, store.TableInteractionEvents,
		[]string{"session_id", "event_type", "details", "timestamp"},
		e.SessionID, e.EventType, e.Details, e.Timestamp)
}

// insert appends one row and returns its id. Rows are never deduplicated.
func (r *repository) insert(ctx context.Context, table string, columns []string, args ...any) (int64, error) {
	query := r.db.Rebind(fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
		table,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	))

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		r.logger.Error("Failed to insert row", zap.String("table", table), zap.Error(err))
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	r.logger.Debug("Row inserted",
		zap.String("table", table),
		zap.Int64("id", id),
	)
	return id, nil
}
