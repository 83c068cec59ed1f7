package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bible_search_server/internal/model"
)

type UserSearchRepository struct {
	db *gorm.DB
}

func NewUserSearchRepository(db *gorm.DB) *UserSearchRepository {
	return &UserSearchRepository{db: db}
}

// Create links a user to a canonical search
func (r *UserSearchRepository) Create(ctx context.Context, link *model.UserSearch) error {
	return r.db.WithContext(ctx).Create(link).Error
}

// GetForUser returns the association only when it belongs to userID
func (r *UserSearchRepository) GetForUser(ctx context.Context, id, userID int64) (*model.UserSearch, error) {
	var link model.UserSearch
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// LatestForUserAndSearch returns the newest association of userID with searchID
func (r *UserSearchRepository) LatestForUserAndSearch(ctx context.Context, userID, searchID int64) (*model.UserSearch, error) {
	var link model.UserSearch
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND search_id = ?", userID, searchID).
		Order("created_at DESC").Order("id DESC").
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// CreateLazy inserts the vote-created association for (userID, searchID)
// unless it already exists and returns the stored row. Concurrent callers get
// the same row.
func (r *UserSearchRepository) CreateLazy(ctx context.Context, userID, searchID int64) (*model.UserSearch, error) {
	lazyKey := model.LazyKeyVote
	link := &model.UserSearch{UserID: userID, SearchID: searchID, LazyKey: &lazyKey}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "search_id"}, {Name: "lazy_key"}},
		DoNothing: true,
	}).Create(link).Error
	if err != nil {
		return nil, err
	}

	var stored model.UserSearch
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND search_id = ? AND lazy_key = ?", userID, searchID, lazyKey).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdateVote writes both vote flags of the association
func (r *UserSearchRepository) UpdateVote(ctx context.Context, link *model.UserSearch) error {
	return r.db.WithContext(ctx).Model(&model.UserSearch{}).
		Where("id = ? AND user_id = ?", link.ID, link.UserID).
		Updates(map[string]interface{}{
			"thumbs_up":   link.ThumbsUp,
			"thumbs_down": link.ThumbsDown,
		}).Error
}

// Delete removes the association when it belongs to userID
func (r *UserSearchRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.UserSearch{})
	return res.RowsAffected > 0, res.Error
}

// ListByUser returns the user's history newest first with the canonical
// search loaded
func (r *UserSearchRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.UserSearch, int64, error) {
	var total int64
	var links []*model.UserSearch

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.UserSearch{}).Where("user_id = ?", userID)
	}

	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := base().Preload("Search").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&links).Error
	return links, total, err
}

// CountByUserAndSearch counts associations between userID and searchID
func (r *UserSearchRepository) CountByUserAndSearch(ctx context.Context, userID, searchID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserSearch{}).
		Where("user_id = ? AND search_id = ?", userID, searchID).
		Count(&count).Error
	return count, err
}
