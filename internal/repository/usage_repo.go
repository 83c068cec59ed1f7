package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bible_search_server/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Increment bumps the counter for (userID, day, kind) and returns the new
// value. The first call of a day creates the row with count 1.
func (r *UsageRepository) Increment(ctx context.Context, userID int64, day, kind string) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &model.DailyUsage{UserID: userID, Day: day, Kind: kind, Count: 1}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}, {Name: "kind"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("daily_usages.count + 1"),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(row).Error
		if err != nil {
			return err
		}

		var stored model.DailyUsage
		if err := tx.Where("user_id = ? AND day = ? AND kind = ?", userID, day, kind).First(&stored).Error; err != nil {
			return err
		}
		count = stored.Count
		return nil
	})
	return count, err
}

// Get returns the counter for (userID, day, kind), zero when absent
func (r *UsageRepository) Get(ctx context.Context, userID int64, day, kind string) (int, error) {
	var stored model.DailyUsage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND day = ? AND kind = ?", userID, day, kind).
		Limit(1).Find(&stored).Error
	return stored.Count, err
}

// DeleteBefore removes counters for days strictly before day
func (r *UsageRepository) DeleteBefore(ctx context.Context, day string) (int64, error) {
	res := r.db.WithContext(ctx).Where("day < ?", day).Delete(&model.DailyUsage{})
	return res.RowsAffected, res.Error
}

func (r *UsageRepository) CountBefore(ctx context.Context, day string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.DailyUsage{}).Where("day < ?", day).Count(&count).Error
	return count, err
}
