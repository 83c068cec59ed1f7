package model

import (
	"time"

	"gorm.io/datatypes"
)

type MediaCache struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Query     string         `gorm:"size:150;not null;uniqueIndex:uk_media_query_language,priority:1" json:"query"`
	Language  string         `gorm:"size:8;not null;uniqueIndex:uk_media_query_language,priority:2" json:"language"`
	Data      datatypes.JSON `json:"data"`
	ExpiresAt time.Time      `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (MediaCache) TableName() string {
	return "media_caches"
}
