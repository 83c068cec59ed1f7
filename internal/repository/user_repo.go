package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bible_search_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("subject = ?", subject).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FirstOrCreateBySubject inserts user unless a row with the same subject
// exists, then returns the stored row. Concurrent first sign-ins converge on
// one row.
func (r *UserRepository) FirstOrCreateBySubject(ctx context.Context, user *model.User) (*model.User, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "subject"}}, DoNothing: true}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.GetBySubject(ctx, user.Subject)
}

func (r *UserRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) UpdateSettings(ctx context.Context, id int64, settings datatypes.JSON) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("settings", settings).Error
}

// DeductCredits subtracts amount only when the balance covers it. The check
// and the write are one statement. ok is false when the balance was short.
func (r *UserRepository) DeductCredits(ctx context.Context, id int64, amount int) (balance int, ok bool, err error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND credits >= ?", id, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return 0, false, res.Error
	}

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, false, err
	}
	return user.Credits, res.RowsAffected == 1, nil
}

func (r *UserRepository) AddCredits(ctx context.Context, id int64, amount int) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
