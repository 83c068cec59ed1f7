package dto

import "time"

// CheckoutRequest credits defaults to the configured package size
type CheckoutRequest struct {
	Credits int `json:"credits" binding:"omitempty,min=1,max=1000"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type CancelTransactionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type TransactionItem struct {
	ID        int64     `json:"id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Credits   int       `json:"credits"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
