package model

import (
	"time"
)

// LazyKeyVote marks associations created by a vote rather than by a search.
const LazyKeyVote = "vote"

// UserSearch links a user to a canonical search and carries that user's
// vote. It is the history entry shown to the user.
type UserSearch struct {
	ID       int64 `gorm:"primaryKey" json:"id"`
	UserID   int64 `gorm:"not null;uniqueIndex:uk_user_search_lazy,priority:1" json:"user_id"`
	SearchID int64 `gorm:"not null;index;uniqueIndex:uk_user_search_lazy,priority:2" json:"search_id"`
	// NULL for rows created by a search, so repeated searches never collide
	LazyKey    *string   `gorm:"size:16;uniqueIndex:uk_user_search_lazy,priority:3" json:"-"`
	ThumbsUp   bool      `gorm:"not null;default:false" json:"thumbs_up"`
	ThumbsDown bool      `gorm:"not null;default:false" json:"thumbs_down"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`

	Search *CanonicalSearch `gorm:"foreignKey:SearchID" json:"search,omitempty"`
}

func (UserSearch) TableName() string {
	return "user_searches"
}

// SetVote applies an up or down vote. The two flags are mutually exclusive
// and a later vote overwrites an earlier one.
func (u *UserSearch) SetVote(up bool) {
	u.ThumbsUp = up
	u.ThumbsDown = !up
}
