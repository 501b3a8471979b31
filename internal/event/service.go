package event

import (
	"context"
	"fmt"

	"github.com/Wuchinator/landing-analytics/internal/metrics"
	"github.com/Wuchinator/landing-analytics/internal/validation"
	"go.uber.org/zap"
)

// Publisher forwards recorded facts to the event stream.
type Publisher interface {
	Publish(ctx context.Context, kind, sessionID string, data any) error
}

type Service struct {
	repo      Repository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewService(repo Repository, publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

func (s *Service) RecordVideo(ctx context.Context, e *VideoEvent) (int64, error) {
	return record(ctx, s, KindVideo, e.SessionID, e, func(ctx context.Context) (int64, error) {
		id, err := s.repo.CreateVideo(ctx, e)
		e.ID = id
		return id, err
	})
}

func (s *Service) RecordClick(ctx context.Context, c *ButtonClick) (int64, error) {
	return record(ctx, s, KindClick, c.SessionID, c, func(ctx context.Context) (int64, error) {
		id, err := s.repo.CreateClick(ctx, c)
		c.ID = id
		return id, err
	})
}

func (s *Service) RecordForm(ctx context.Context, f *FormSubmission) (int64, error) {
	return record(ctx, s, KindForm, f.SessionID, f, func(ctx context.Context) (int64, error) {
		id, err := s.repo.CreateForm(ctx, f)
		f.ID = id
		return id, err
	})
}

func (s *Service) RecordInteraction(ctx context.Context, e *InteractionEvent) (int64, error) {
	return record(ctx, s, KindInteraction, e.SessionID, e, func(ctx context.Context) (int64, error) {
		id, err := s.repo.CreateInteraction(ctx, e)
		e.ID = id
		return id, err
	})
}

// record validates v, inserts it and forwards it to the stream. Stream
// failures are logged and never returned.
func record[T any](
	ctx context.Context,
	s *Service,
	kind, sessionID string,
	v *T,
	insert func(ctx context.Context) (int64, error),
) (int64, error) {
	if err := validation.Struct(v); err != nil {
		s.metrics.RecordIngest(kind, metrics.StatusInvalid)
		s.logger.Warn("failed to validate event",
			zap.String("kind", kind),
			zap.Error(err))
		return 0, err
	}

	id, err := insert(ctx)
	if err != nil {
		s.metrics.RecordIngest(kind, metrics.StatusFailed)
		s.logger.Error("failed to record event",
			zap.String("kind", kind),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to record %s event: %w", kind, err)
	}
	s.metrics.RecordIngest(kind, metrics.StatusSuccess)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, kind, sessionID, v); err != nil {
			s.logger.Error("failed to send message",
				zap.String("kind", kind),
				zap.Int64("id", id),
				zap.Error(err))
		}
	}

	s.logger.Info("Event tracked successfully",
		zap.String("kind", kind),
		zap.Int64("id", id),
		zap.String("session_id", sessionID),
	)
	return id, nil
}
