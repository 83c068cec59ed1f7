package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/cache"
	"github.com/qs3c/bible_search_server/internal/pkg/media"
	"github.com/qs3c/bible_search_server/internal/pkg/metrics"
	"github.com/qs3c/bible_search_server/internal/pkg/searchkey"
	"github.com/qs3c/bible_search_server/internal/repository"
)

// MediaSearcher fetches related articles upstream
type MediaSearcher interface {
	Configured() bool
	Search(ctx context.Context, query, lang string) ([]media.Item, error)
}

// JSONCache is the short-lived layer in front of the database cache
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// MediaService answers media lookups from Redis, then the database cache,
// then upstream. Concurrent upstream calls for one key share a single
// request.
type MediaService struct {
	searcher  MediaSearcher
	mediaRepo *repository.MediaCacheRepository
	cache     JSONCache
	usage     *UsageService
	inflight  singleflight.Group
	cfg       *config.Config
	log       *logrus.Logger
	now       func() time.Time
}

func NewMediaService(
	searcher MediaSearcher,
	mediaRepo *repository.MediaCacheRepository,
	cache JSONCache,
	usage *UsageService,
	cfg *config.Config,
	log *logrus.Logger,
) *MediaService {
	return &MediaService{
		searcher:  searcher,
		mediaRepo: mediaRepo,
		cache:     cache,
		usage:     usage,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Search returns articles related to query
func (s *MediaService) Search(ctx context.Context, userID int64, query, lang string) (*dto.MediaResponse, error) {
	query = searchkey.NormalizeQuery(query)
	if query == "" || len([]rune(query)) > searchkey.MaxQueryLength {
		return nil, ErrInvalidParameters
	}
	lang, _ = searchkey.Normalize(map[string]interface{}{"language": lang})

	ok, err := s.usage.Consume(ctx, userID, model.UsageKindMedia)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRateLimitExceeded
	}

	key := lang + ":" + query

	if items, ok := s.fromRedis(ctx, key); ok {
		metrics.MediaLookups.WithLabelValues("redis").Inc()
		return &dto.MediaResponse{Images: items, Cached: true}, nil
	}

	if items, ok := s.fromDatabase(ctx, query, lang); ok {
		metrics.MediaLookups.WithLabelValues("database").Inc()
		s.toRedis(ctx, key, items)
		return &dto.MediaResponse{Images: items, Cached: true}, nil
	}

	if !s.searcher.Configured() {
		return nil, ErrBackendUnavailable
	}

	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		// shared by every waiter, so no single caller's cancellation applies
		return s.fetch(context.WithoutCancel(ctx), key, query, lang)
	})
	if err != nil {
		s.log.WithError(err).WithField("language", lang).Warn("media upstream lookup failed")
		return nil, ErrBackendUnavailable
	}
	metrics.MediaLookups.WithLabelValues("upstream").Inc()

	return &dto.MediaResponse{Images: v.([]media.Item), Cached: false}, nil
}

func (s *MediaService) fetch(ctx context.Context, key, query, lang string) ([]media.Item, error) {
	items, err := s.searcher.Search(ctx, query, lang)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []media.Item{}, nil
	}

	data, err := json.Marshal(items)
	if err == nil {
		expiresAt := s.now().UTC().Add(s.dbTTL())
		if err := s.mediaRepo.Upsert(ctx, query, lang, datatypes.JSON(data), expiresAt); err != nil {
			s.log.WithError(err).Warn("failed to store media cache entry")
		}
	}
	s.toRedis(ctx, key, items)
	return items, nil
}

func (s *MediaService) fromRedis(ctx context.Context, key string) ([]media.Item, bool) {
	if s.cache == nil {
		return nil, false
	}
	var items []media.Item
	err := s.cache.GetJSON(ctx, key, &items)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.WithError(err).Warn("media redis lookup failed")
		}
		return nil, false
	}
	return items, len(items) > 0
}

func (s *MediaService) toRedis(ctx context.Context, key string, items []media.Item) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, items, s.redisTTL()); err != nil {
		s.log.WithError(err).Warn("failed to write media redis entry")
	}
}

func (s *MediaService) fromDatabase(ctx context.Context, query, lang string) ([]media.Item, bool) {
	entry, err := s.mediaRepo.GetFresh(ctx, query, lang, s.now().UTC())
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithError(err).Warn("media cache lookup failed")
		}
		return nil, false
	}

	var items []media.Item
	if err := json.Unmarshal(entry.Data, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	return items, true
}

// PurgeExpired removes expired database entries. With dryRun it only counts
// them.
func (s *MediaService) PurgeExpired(ctx context.Context, dryRun bool) (int64, error) {
	now := s.now().UTC()
	if dryRun {
		return s.mediaRepo.CountExpired(ctx, now)
	}
	return s.mediaRepo.DeleteExpired(ctx, now)
}

func (s *MediaService) dbTTL() time.Duration {
	days := s.cfg.Media.CacheTTLDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

func (s *MediaService) redisTTL() time.Duration {
	minutes := s.cfg.Media.RedisTTLMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}
