package dto

import "time"

// UserInfo is the caller's profile; the identity subject is never exposed
type UserInfo struct {
	ID        int64                  `json:"id"`
	Email     string                 `json:"email"`
	Credits   int                    `json:"credits"`
	Settings  map[string]interface{} `json:"settings"`
	CreatedAt time.Time              `json:"created_at"`
}

type MeResponse struct {
	User         *UserInfo          `json:"user"`
	Transactions []*TransactionItem `json:"transactions"`
}
