package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bible_search_server/internal/model"
)

type MediaCacheRepository struct {
	db *gorm.DB
}

func NewMediaCacheRepository(db *gorm.DB) *MediaCacheRepository {
	return &MediaCacheRepository{db: db}
}

// GetFresh returns the cached entry for (query, language) if it has not
// expired at now
func (r *MediaCacheRepository) GetFresh(ctx context.Context, query, language string, now time.Time) (*model.MediaCache, error) {
	var entry model.MediaCache
	err := r.db.WithContext(ctx).
		Where("query = ? AND language = ? AND expires_at > ?", query, language, now).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert stores data for (query, language), replacing any previous entry
func (r *MediaCacheRepository) Upsert(ctx context.Context, query, language string, data datatypes.JSON, expiresAt time.Time) error {
	entry := &model.MediaCache{
		Query:     query,
		Language:  language,
		Data:      data,
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "query"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(entry).Error
}

// DeleteExpired removes entries that expired at or before now
func (r *MediaCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.MediaCache{})
	return res.RowsAffected, res.Error
}

func (r *MediaCacheRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MediaCache{}).
		Where("expires_at <= ?", now).
		Count(&count).Error
	return count, err
}
