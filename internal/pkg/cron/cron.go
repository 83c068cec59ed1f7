package cron

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Purger removes expired rows. With dryRun it only counts them.
type Purger interface {
	PurgeExpired(ctx context.Context, dryRun bool) (int64, error)
}

// Pruner drops usage counters older than the retention window
type Pruner interface {
	Prune(ctx context.Context, dryRun bool) (int64, error)
}

// Service runs the periodic housekeeping jobs: an hourly media cache purge and
// a usage prune just after every UTC midnight.
type Service struct {
	media    Purger
	usage    Pruner
	log      *logrus.Logger
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(media Purger, usage Pruner, log *logrus.Logger) *Service {
	return &Service{
		media:    media,
		usage:    usage,
		log:      log,
		interval: time.Hour,
		timeout:  5 * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start launches the job loops
func (s *Service) Start() {
	s.wg.Add(2)
	go s.runMediaPurge()
	go s.runUsagePrune()
	s.log.Info("cron service started (media purge + usage prune)")
}

// Stop ends the job loops and waits for a running job to return
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.log.Info("cron service stopped")
}

func (s *Service) runMediaPurge() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.purgeMedia()
		}
	}
}

func (s *Service) runUsagePrune() {
	defer s.wg.Done()
	timer := time.NewTimer(untilMidnight(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-timer.C:
			s.pruneUsage()
			timer.Reset(untilMidnight(time.Now()))
		}
	}
}

// untilMidnight is the wait until the next UTC day starts
func untilMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now)
}

func (s *Service) purgeMedia() int64 {
	if s.media == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.media.PurgeExpired(ctx, false)
	if err != nil {
		s.log.WithError(err).Error("media cache purge failed")
		return 0
	}
	if n > 0 {
		s.log.WithField("rows", n).Info("media cache purged")
	}
	return n
}

func (s *Service) pruneUsage() int64 {
	if s.usage == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.usage.Prune(ctx, false)
	if err != nil {
		s.log.WithError(err).Error("usage prune failed")
		return 0
	}
	s.log.WithField("rows", n).Info("usage counters pruned")
	return n
}

// RunNow runs both jobs once, for manual triggers
func (s *Service) RunNow() (purged, pruned int64) {
	return s.purgeMedia(), s.pruneUsage()
}
