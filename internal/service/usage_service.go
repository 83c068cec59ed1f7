package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/repository"
)

const dayLayout = "2006-01-02"

// UsageService keeps per-user daily counters. A new UTC day starts a new
// counter row, so nothing is ever reset.
type UsageService struct {
	usageRepo *repository.UsageRepository
	cfg       *config.Config
	log       *logrus.Logger
	now       func() time.Time
}

func NewUsageService(usageRepo *repository.UsageRepository, cfg *config.Config, log *logrus.Logger) *UsageService {
	return &UsageService{
		usageRepo: usageRepo,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Consume counts one operation of kind for userID and reports whether the
// caller is still within today's limit. Storage errors let the call through.
func (s *UsageService) Consume(ctx context.Context, userID int64, kind string) (bool, error) {
	if userID == 0 {
		return true, nil
	}
	limit := s.limit(kind)
	if limit <= 0 {
		return true, nil
	}

	count, err := s.usageRepo.Increment(ctx, userID, s.today(), kind)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"kind":    kind,
		}).Warn("usage counter unavailable, allowing request")
		return true, nil
	}
	return count <= limit, nil
}

// Used returns today's count for userID and kind
func (s *UsageService) Used(ctx context.Context, userID int64, kind string) (int, error) {
	return s.usageRepo.Get(ctx, userID, s.today(), kind)
}

// Prune deletes counters older than the retention window. With dryRun it
// only counts them.
func (s *UsageService) Prune(ctx context.Context, dryRun bool) (int64, error) {
	days := s.cfg.Limits.UsageRetentionDays
	if days <= 0 {
		days = 30
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days).Format(dayLayout)

	if dryRun {
		return s.usageRepo.CountBefore(ctx, cutoff)
	}
	return s.usageRepo.DeleteBefore(ctx, cutoff)
}

func (s *UsageService) limit(kind string) int {
	switch kind {
	case model.UsageKindMedia:
		return s.cfg.Limits.MediaPerDay
	case model.UsageKindGeneral:
		return s.cfg.Limits.GeneralPerDay
	default:
		return 0
	}
}

func (s *UsageService) today() string {
	return s.now().UTC().Format(dayLayout)
}
