package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/geocode"
	"github.com/Wuchinator/landing-analytics/internal/metrics"
	"github.com/Wuchinator/landing-analytics/internal/validation"
	"go.uber.org/zap"
)

const kind = "session"

// Publisher forwards accepted patches to the event stream.
type Publisher interface {
	Publish(ctx context.Context, kind, sessionID string, data any) error
}

type Config struct {
	// GeocodeTimeout bounds the whole enrichment call, however the
	// resolver behaves.
	GeocodeTimeout time.Duration
}

type Service struct {
	repo      Repository
	resolver  geocode.Resolver
	publisher Publisher
	metrics   *metrics.Metrics
	cfg       Config
	logger    *zap.Logger
}

func NewService(
	repo Repository,
	resolver geocode.Resolver,
	publisher Publisher,
	m *metrics.Metrics,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if resolver == nil {
		resolver = geocode.Noop{}
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
}

// Upsert creates the session on first sight and patches it afterwards.
// Enrichment failures never fail the call; store failures always do.
func (s *Service) Upsert(ctx context.Context, patch *Patch) (Result, error) {
	if err := validation.Struct(patch); err != nil {
		s.metrics.RecordIngest(kind, metrics.StatusInvalid)
		s.logger.Warn("Rejected session patch", zap.Error(err))
		return Result{}, err
	}

	// Place names only ever come from the resolver.
	patch.Municipality, patch.Region, patch.Country = Field[string]{}, Field[string]{}, Field[string]{}

	// A final beacon without foreground time still tells us the page was open.
	if at, ok := patch.ActiveTime.Get(); !ok || at <= 0 {
		if top, ok := patch.TimeOnPage.Get(); ok && top >= 0 {
			patch.ActiveTime = Value(top)
		}
	}

	existing, err := s.repo.GetBySessionID(ctx, patch.SessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return s.fail(patch, err)
	}

	if lat, lon, ok := patch.Coordinates(); ok {
		if existing != nil && existing.HasPlaceFor(lat, lon) {
			s.metrics.RecordGeocode(metrics.GeocodeSkipped)
		} else {
			patch.ApplyPlace(s.resolvePlace(ctx, lat, lon))
		}
	}

	result := Result{}
	if existing == nil {
		err = s.repo.Create(ctx, patch)
		switch {
		case err == nil:
			result.Created = true
		case errors.Is(err, ErrSessionExists):
			// Lost the race against another first write for this id.
			s.logger.Debug("Session created concurrently, patching instead",
				zap.String("session_id", patch.SessionID))
			err = s.repo.Update(ctx, patch)
		}
	} else {
		err = s.repo.Update(ctx, patch)
	}
	if err != nil {
		return s.fail(patch, err)
	}

	s.metrics.RecordIngest(kind, metrics.StatusSuccess)
	s.publish(ctx, patch)

	s.logger.Info("Session tracked successfully",
		zap.String("session_id", patch.SessionID),
		zap.Bool("created", result.Created),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// resolvePlace runs the resolver under a deadline. The resolver goroutine
// may outlive the call if it ignores its context; its result is dropped.
func (s *Service) resolvePlace(ctx context.Context, lat, lon float64) *geocode.Place {
	if s.cfg.GeocodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GeocodeTimeout)
		defer cancel()
	}

	result := make(chan *geocode.Place, 1)
	go func() {
		result <- s.resolver.Resolve(ctx, lat, lon)
	}()

	select {
	case place := <-result:
		return place
	case <-ctx.Done():
		s.metrics.RecordGeocode(metrics.GeocodeTimeout)
		s.logger.Warn("Reverse geocode abandoned",
			zap.Float64("latitude", lat),
			zap.Float64("longitude", lon),
			zap.Error(ctx.Err()),
		)
		return nil
	}
}

func (s *Service) publish(ctx context.Context, patch *Patch) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, kind, patch.SessionID, patch); err != nil {
		s.logger.Error("failed to publish session patch",
			zap.String("session_id", patch.SessionID),
			zap.Error(err))
	}
}

func (s *Service) fail(patch *Patch, err error) (Result, error) {
	s.metrics.RecordIngest(kind, metrics.StatusFailed)
	s.logger.Error("failed to upsert session",
		zap.String("session_id", patch.SessionID),
		zap.Error(err))
	return Result{}, fmt.Errorf("failed to upsert session: %w", err)
}
