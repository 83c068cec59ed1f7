package model

import (
	"time"
)

const (
	TransactionPending   = "pending"
	TransactionSucceeded = "succeeded"
	TransactionFailed    = "failed"
	TransactionCanceled  = "canceled"
)

// Who canceled a session. Only an owner cancel can still be completed by a
// later payment; an expiry from the processor is final.
const (
	CanceledByOwner     = "owner"
	CanceledByProcessor = "processor"
)

// Transaction records one credit purchase attempt, keyed by the payment
// processor's checkout session id.
type Transaction struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"not null;index" json:"user_id"`
	Amount     float64   `gorm:"type:decimal(10,2)" json:"amount"`
	Currency   string    `gorm:"size:3;not null" json:"currency"`
	Credits    int       `gorm:"not null" json:"credits"`
	SessionID  string    `gorm:"size:255;not null;uniqueIndex" json:"session_id"`
	Status     string    `gorm:"size:20;not null;default:pending;index" json:"status"` // pending, succeeded, failed, canceled
	CanceledBy string    `gorm:"size:20" json:"canceled_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
