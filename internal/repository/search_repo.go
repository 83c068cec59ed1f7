package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bible_search_server/internal/model"
)

type SearchRepository struct {
	db *gorm.DB
}

func NewSearchRepository(db *gorm.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

func (r *SearchRepository) GetByID(ctx context.Context, id int64) (*model.CanonicalSearch, error) {
	var search model.CanonicalSearch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&search).Error
	if err != nil {
		return nil, err
	}
	return &search, nil
}

// FindReusable returns the newest backend-generated canonical searches for
// (query, language) whose down-votes do not outnumber their up-votes across
// all users.
func (r *SearchRepository) FindReusable(ctx context.Context, query, language string, limit int) ([]*model.CanonicalSearch, error) {
	upVotes := r.db.Model(&model.UserSearch{}).Select("COUNT(*)").
		Where("user_searches.search_id = canonical_searches.id AND user_searches.thumbs_up = ?", true)
	downVotes := r.db.Model(&model.UserSearch{}).Select("COUNT(*)").
		Where("user_searches.search_id = canonical_searches.id AND user_searches.thumbs_down = ?", true)

	var searches []*model.CanonicalSearch
	err := r.db.WithContext(ctx).
		Where("canonical_searches.query = ? AND canonical_searches.language = ?", query, language).
		Where("canonical_searches.source = ?", model.SearchSourceBackend).
		Where("(?) <= (?)", downVotes, upVotes).
		Order("canonical_searches.created_at DESC").
		Order("canonical_searches.id DESC").
		Limit(limit).
		Find(&searches).Error
	return searches, err
}

// SaveWithAssociation stores search, reusing an existing row with the same
// key and response, and links userID to it when userID is non-zero. Both
// writes commit together.
func (r *SearchRepository) SaveWithAssociation(ctx context.Context, search *model.CanonicalSearch, userID int64) (*model.CanonicalSearch, *model.UserSearch, error) {
	var saved *model.CanonicalSearch
	var link *model.UserSearch

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		saved, err = insertOrGetSearch(tx, search)
		if err != nil {
			return err
		}
		if userID == 0 {
			return nil
		}
		link = &model.UserSearch{UserID: userID, SearchID: saved.ID}
		return tx.Create(link).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return saved, link, nil
}

func insertOrGetSearch(tx *gorm.DB, search *model.CanonicalSearch) (*model.CanonicalSearch, error) {
	if search.Source == "" {
		search.Source = model.SearchSourceBackend
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "query"}, {Name: "language"}, {Name: "options_key"}, {Name: "response_hash"}, {Name: "source"}},
		DoNothing: true,
	}).Create(search).Error
	if err != nil {
		return nil, err
	}

	var stored model.CanonicalSearch
	err = tx.Where("query = ? AND language = ? AND options_key = ? AND response_hash = ? AND source = ?",
		search.Query, search.Language, search.OptionsKey, search.ResponseHash, search.Source).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// CountVotes aggregates up and down votes across every association of the
// search.
func (r *SearchRepository) CountVotes(ctx context.Context, searchID int64) (up, down int64, err error) {
	var row struct {
		Up   int64
		Down int64
	}
	err = r.db.WithContext(ctx).Model(&model.UserSearch{}).
		Select("COALESCE(SUM(CASE WHEN thumbs_up = ? THEN 1 ELSE 0 END), 0) AS up, "+
			"COALESCE(SUM(CASE WHEN thumbs_down = ? THEN 1 ELSE 0 END), 0) AS down", true, true).
		Where("search_id = ?", searchID).
		Scan(&row).Error
	return row.Up, row.Down, err
}
