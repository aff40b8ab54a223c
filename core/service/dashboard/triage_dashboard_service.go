package dashboard

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/core/service/triage"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

const (
	statsKey        = "dashboard:stats"
	defaultStatsTTL = 30 * time.Second

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// Service serves read models for the dashboard. Cache, Archive and Graph may be nil.
type Service struct {
	classifications out.ClassificationRepository
	reviews         out.ReviewQueueRepository
	cache           out.Cache
	archive         out.BodyArchive
	graph           out.RoutingGraph
	statsTTL        time.Duration
	flight          singleflight.Group
	log             *logger.Logger
}

type Options struct {
	Cache    out.Cache
	Archive  out.BodyArchive
	Graph    out.RoutingGraph
	StatsTTL time.Duration
}

func NewService(classifications out.ClassificationRepository, reviews out.ReviewQueueRepository, opts Options, log *logger.Logger) *Service {
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = defaultStatsTTL
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		classifications: classifications,
		reviews:         reviews,
		cache:           opts.Cache,
		archive:         opts.Archive,
		graph:           opts.Graph,
		statsTTL:        opts.StatsTTL,
		log:             log,
	}
}

func (s *Service) History(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	records, err := s.classifications.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperr.DatabaseError("list classifications", err)
	}
	return records, nil
}

func (s *Service) PendingReviews(ctx context.Context) ([]*domain.ReviewQueueEntry, error) {
	entries, err := s.reviews.ListPending(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("list pending reviews", err)
	}
	return entries, nil
}

func (s *Service) CompleteReview(ctx context.Context, id int64) error {
	if err := s.reviews.MarkReviewed(ctx, id); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("review")
		}
		return apperr.DatabaseError("complete review", err)
	}
	s.Invalidate(ctx)
	return nil
}

// Stats reads through the cache. Concurrent misses share one database round trip.
func (s *Service) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	if s.cache != nil {
		var cached domain.DashboardStats
		hit, err := s.cache.GetJSON(ctx, statsKey, &cached)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("stats cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	v, err, _ := s.flight.Do(statsKey, func() (any, error) {
		return s.loadStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.DashboardStats), nil
}

func (s *Service) loadStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats, err := s.classifications.Stats(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("aggregate classifications", err)
	}
	pending, err := s.reviews.CountPending(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("count pending reviews", err)
	}
	stats.PendingReviews = pending
	if stats.DepartmentDistribution == nil {
		stats.DepartmentDistribution = map[string]int{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, statsKey, stats, s.statsTTL); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("stats cache write failed")
		}
	}
	return stats, nil
}

func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsKey); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("stats cache invalidation failed")
	}
}

// EmailDetails looks up by provider message id and adds archive and routing history when available.
func (s *Service) EmailDetails(ctx context.Context, emailID string) (*domain.EmailDetails, error) {
	emailID = strings.TrimSpace(emailID)
	if emailID == "" {
		return nil, apperr.MissingField("email_id")
	}
	rec, err := s.classifications.GetByEmailID(ctx, emailID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("email")
		}
		return nil, apperr.DatabaseError("get classification", err)
	}

	details := &domain.EmailDetails{
		ClassificationRecord: rec,
		ConfidenceLevel:      domain.ConfidenceLevel(rec.Confidence),
	}
	log := s.log.WithContext(ctx).WithField("email_id", emailID)

	if s.archive != nil {
		archived, err := s.archive.Get(ctx, emailID)
		switch {
		case err == nil:
			details.Archived = archived
		case !errors.Is(err, out.ErrNotFound):
			log.WithError(err).Warn("archive lookup failed")
		}
	}
	if s.graph != nil {
		history, err := s.graph.TopDepartments(ctx, triage.ExtractAddress(rec.Sender), 3)
		if err != nil {
			log.WithError(err).Warn("routing history lookup failed")
		} else {
			details.SenderHistory = history
		}
	}
	return details, nil
}

var _ in.DashboardService = (*Service)(nil)
