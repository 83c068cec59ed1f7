package model

import (
	"time"

	"gorm.io/datatypes"
)

// Where a canonical search came from. Only backend rows are served from the
// answer cache.
const (
	SearchSourceBackend = "backend"
	SearchSourceClient  = "client"
)

// CanonicalSearch is a cached backend answer shared by every user whose
// search resolves to it. Rows are never rewritten; a fresh generation for the
// same key produces a new row.
type CanonicalSearch struct {
	ID                int64          `gorm:"primaryKey" json:"id"`
	Query             string         `gorm:"size:150;not null;uniqueIndex:uk_canonical_search,priority:1" json:"query"`
	Language          string         `gorm:"size:8;not null;uniqueIndex:uk_canonical_search,priority:2" json:"language"`
	Options           datatypes.JSON `gorm:"not null" json:"options"`
	OptionsKey        string         `gorm:"size:128;not null;uniqueIndex:uk_canonical_search,priority:3" json:"-"`
	Response          string         `gorm:"type:text" json:"response"`
	ResponseHash      string         `gorm:"size:64;not null;uniqueIndex:uk_canonical_search,priority:4" json:"-"`
	Source            string         `gorm:"size:10;not null;default:backend;uniqueIndex:uk_canonical_search,priority:5" json:"source"`
	BibleResults      datatypes.JSON `json:"bible_results"`
	CommentaryResults datatypes.JSON `json:"commentary_results"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (CanonicalSearch) TableName() string {
	return "canonical_searches"
}
