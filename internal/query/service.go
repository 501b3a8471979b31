package query

import (
	"context"
	"fmt"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/event"
	"github.com/Wuchinator/landing-analytics/internal/metrics"
	"github.com/Wuchinator/landing-analytics/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	repo    Repository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewService(repo Repository, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

func observe[T any](s *Service, name string, fn func() (T, error)) (T, error) {
	defer s.metrics.ObserveQuery(name, time.Now())
	return fn()
}

// Overview runs its independent aggregates concurrently.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	defer s.metrics.ObserveQuery("overview", time.Now())

	var (
		o   Overview
		avg *SessionAverages
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountSessions(gctx)
		o.TotalSessions = n
		return err
	})
	g.Go(func() error {
		v, err := s.repo.AvgVideoTime(gctx)
		o.AvgVideoTime = v
		return err
	})
	g.Go(func() error {
		clicks, err := s.repo.ClicksByType(gctx)
		o.ClicksByType = clicks
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountForms(gctx)
		o.TotalForms = n
		return err
	})
	g.Go(func() error {
		var err error
		avg, err = s.repo.SessionAverages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build overview: %w", err)
	}

	o.AvgTimeOnPage = avg.TimeOnPage
	o.AvgActiveTime = avg.ActiveTime
	o.AvgScrollDepth = avg.ScrollDepth
	if o.TotalSessions > 0 {
		o.ConversionRate = float64(o.TotalForms) / float64(o.TotalSessions) * 100
	}

	s.logger.Debug("Overview computed",
		zap.Int64("sessions", o.TotalSessions),
		zap.Int64("forms", o.TotalForms),
	)
	return &o, nil
}

func (s *Service) Technical(ctx context.Context) (*Technical, error) {
	return observe(s, "technical", func() (*Technical, error) {
		return s.repo.Technical(ctx)
	})
}

func (s *Service) Sessions(ctx context.Context, limit int) ([]session.Session, error) {
	return observe(s, "sessions", func() ([]session.Session, error) {
		return s.repo.Sessions(ctx, limit)
	})
}

func (s *Service) FormSubmissions(ctx context.Context, limit int) ([]FormSubmission, error) {
	return observe(s, "form_submissions", func() ([]FormSubmission, error) {
		return s.repo.FormSubmissions(ctx, limit)
	})
}

func (s *Service) VideoStats(ctx context.Context) ([]VideoStat, error) {
	return observe(s, "video_stats", func() ([]VideoStat, error) {
		return s.repo.VideoStats(ctx)
	})
}

func (s *Service) Clicks(ctx context.Context, limit int) ([]event.ButtonClick, error) {
	return observe(s, "clicks", func() ([]event.ButtonClick, error) {
		return s.repo.Clicks(ctx, limit)
	})
}

func (s *Service) ClicksTimeline(ctx context.Context) ([]ClickDay, error) {
	return observe(s, "clicks_timeline", func() ([]ClickDay, error) {
		return s.repo.ClicksTimeline(ctx)
	})
}

// TimeDistribution returns every bucket in display order, including the
// empty ones.
func (s *Service) TimeDistribution(ctx context.Context) ([]TimeBucket, error) {
	return observe(s, "time_distribution", func() ([]TimeBucket, error) {
		found, err := s.repo.TimeDistribution(ctx)
		if err != nil {
			return nil, err
		}

		counts := make(map[string]int64, len(found))
		for _, b := range found {
			counts[b.Bucket] = b.Count
		}
		buckets := make([]TimeBucket, len(TimeBuckets))
		for i, name := range TimeBuckets {
			buckets[i] = TimeBucket{Bucket: name, Count: counts[name]}
		}
		return buckets, nil
	})
}

func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	return observe(s, "locations", func() ([]Location, error) {
		return s.repo.Locations(ctx)
	})
}

func (s *Service) Regions(ctx context.Context) ([]RegionCount, error) {
	return observe(s, "regions", func() ([]RegionCount, error) {
		return s.repo.Regions(ctx)
	})
}

func (s *Service) Interactions(ctx context.Context, limit int) ([]event.InteractionEvent, error) {
	return observe(s, "interactions", func() ([]event.InteractionEvent, error) {
		return s.repo.Interactions(ctx, limit)
	})
}
