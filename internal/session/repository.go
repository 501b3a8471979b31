package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/Wuchinator/landing-analytics/pkg/database"
	"go.uber.org/zap"
)

type Repository interface {
	GetBySessionID(ctx context.Context, sessionID string) (*Session, error)
	Create(ctx context.Context, patch *Patch) error
	Update(ctx context.Context, patch *Patch) error
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

func (r *repository) GetBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	query := r.db.Rebind(`SELECT ` + Columns + ` FROM sessions WHERE session_id = ?`)

	var s Session
	if err := r.db.GetContext(ctx, &s, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// Create inserts a new row. Fields without a value are left NULL, metrics
// take their column default. A concurrent insert of the same session_id
// yields ErrSessionExists.
func (r *repository) Create(ctx context.Context, patch *Patch) error {
	names := []string{"session_id", "timestamp"}
	args := []any{patch.SessionID, patch.Timestamp}
	for _, c := range patch.columns() {
		names = append(names, c.name)
		args = append(args, c.value)
	}

	query := r.db.Rebind(fmt.Sprintf(
		`INSERT INTO sessions (%s) VALUES (%s)`,
		strings.Join(names, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "),
	))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if store.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrSessionExists, patch.SessionID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("Session created",
		zap.String("session_id", patch.SessionID),
		zap.Int("fields", len(names)-2),
	)
	return nil
}

// Update applies a sparse patch in one statement. session_id and the
// first-seen timestamp are never touched.
func (r *repository) Update(ctx context.Context, patch *Patch) error {
	cols := patch.columns()
	if len(cols) == 0 {
		return r.exists(ctx, patch.SessionID)
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)*2+1)
	for _, c := range cols {
		if c.monotonic {
			sets = append(sets, fmt.Sprintf("%[1]s = CASE WHEN %[1]s IS NULL OR %[1]s < ? THEN ? ELSE %[1]s END", c.name))
			args = append(args, c.value, c.value)
			continue
		}
		sets = append(sets, c.name+" = ?")
		args = append(args, c.value)
	}
	args = append(args, patch.SessionID)

	query := r.db.Rebind(`UPDATE sessions SET ` + strings.Join(sets, ", ") + ` WHERE session_id = ?`)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	r.logger.Debug("Session patched",
		zap.String("session_id", patch.SessionID),
		zap.Int("fields", len(cols)),
	)
	return nil
}

func (r *repository) exists(ctx context.Context, sessionID string) error {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`)
	if err := r.db.GetContext(ctx, &n, query, sessionID); err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
