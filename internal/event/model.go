package event

import (
	"github.com/Wuchinator/landing-analytics/internal/store"
)

// Kinds of tracked facts, used as metric labels and stream envelope kinds.
const (
	KindVideo       = "video"
	KindClick       = "click"
	KindForm        = "form"
	KindInteraction = "interaction"
)

type VideoEvent struct {
	ID                int64           `db:"id" json:"id"`
	SessionID         string          `db:"session_id" json:"session_id" validate:"required,max=128"`
	EventType         string          `db:"event_type" json:"event_type" validate:"required,max=64"`
	Timestamp         store.Timestamp `db:"timestamp" json:"timestamp" validate:"required"`
	VideoTime         *float64        `db:"video_time" json:"video_time"`
	TotalWatchTime    *float64        `db:"total_watch_time" json:"total_watch_time"`
	PercentageWatched *float64        `db:"percentage_watched" json:"percentage_watched"`
}

type ButtonClick struct {
	ID         int64           `db:"id" json:"id"`
	SessionID  string          `db:"session_id" json:"session_id" validate:"required,max=128"`
	ButtonType string          `db:"button_type" json:"button_type" validate:"required,max=64"`
	Timestamp  store.Timestamp `db:"timestamp" json:"timestamp" validate:"required"`
}

type FormSubmission struct {
	ID        int64           `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"session_id" validate:"required,max=128"`
	Name      *string         `db:"name" json:"name"`
	Email     *string         `db:"email" json:"email"`
	Phone     *string         `db:"phone" json:"phone"`
	Timestamp store.Timestamp `db:"timestamp" json:"timestamp" validate:"required"`
}

// InteractionEvent carries a free-form details document whose shape
// depends on EventType, e.g. {width,height} for resize.
type InteractionEvent struct {
	ID        int64           `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"session_id" validate:"required,max=128"`
	EventType string          `db:"event_type" json:"event_type" validate:"required,max=64"`
	Details   store.Payload   `db:"details" json:"details"`
	Timestamp store.Timestamp `db:"timestamp" json:"timestamp" validate:"required"`
}
