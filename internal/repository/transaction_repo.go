package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bible_search_server/internal/model"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateIfAbsent inserts tx unless a row with the same session id exists
func (r *TransactionRepository) CreateIfAbsent(ctx context.Context, tx *model.Transaction) error {
	return createTransactionIfAbsent(r.db.WithContext(ctx), tx)
}

func createTransactionIfAbsent(db *gorm.DB, tx *model.Transaction) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(tx).Error
}

func (r *TransactionRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListByUser returns the user's transactions newest first
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	var txs []*model.Transaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&txs).Error
	return txs, err
}

// Transition moves a transaction to status when its current status is one
// of from. It is driven by processor events, so a cancel here is recorded
// as the processor's. It reports whether a row changed.
func (r *TransactionRepository) Transition(ctx context.Context, sessionID, status string, from ...string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("session_id = ? AND status IN ?", sessionID, from).
		Updates(transitionColumns(status, model.CanceledByProcessor))
	return res.RowsAffected > 0, res.Error
}

// TransitionForUser is Transition scoped to the owning user. A cancel here
// is recorded as the owner's.
func (r *TransactionRepository) TransitionForUser(ctx context.Context, sessionID string, userID int64, status string, from ...string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("session_id = ? AND user_id = ? AND status IN ?", sessionID, userID, from).
		Updates(transitionColumns(status, model.CanceledByOwner))
	return res.RowsAffected > 0, res.Error
}

func transitionColumns(status, canceledBy string) map[string]interface{} {
	cols := map[string]interface{}{"status": status}
	if status == model.TransactionCanceled {
		cols["canceled_by"] = canceledBy
	}
	return cols
}

// CompleteAndCredit marks the session succeeded and credits its owner in one
// database transaction. The row is inserted from record first when checkout
// never stored it. credited is false when the session had already been
// completed, or was expired by the processor, so replays never credit twice.
// A session the owner canceled is still completed since the payment went
// through anyway.
func (r *TransactionRepository) CompleteAndCredit(ctx context.Context, record *model.Transaction) (credited bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending := *record
		pending.ID = 0
		pending.Status = model.TransactionPending
		if err := createTransactionIfAbsent(tx, &pending); err != nil {
			return err
		}

		res := tx.Model(&model.Transaction{}).
			Where("session_id = ? AND (status = ? OR (status = ? AND canceled_by = ?))", record.SessionID,
				model.TransactionPending, model.TransactionCanceled, model.CanceledByOwner).
			Updates(map[string]interface{}{
				"status":   model.TransactionSucceeded,
				"amount":   record.Amount,
				"currency": record.Currency,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var stored model.Transaction
		if err := tx.Where("session_id = ?", record.SessionID).First(&stored).Error; err != nil {
			return err
		}

		res = tx.Model(&model.User{}).Where("id = ?", stored.UserID).
			Update("credits", gorm.Expr("credits + ?", stored.Credits))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		credited = true
		return nil
	})
	return credited, err
}
