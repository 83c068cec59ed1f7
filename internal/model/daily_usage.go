package model

import (
	"time"
)

const (
	UsageKindGeneral = "general"
	UsageKindMedia   = "media"
)

// DailyUsage counts rate-limited operations per user and UTC day.
type DailyUsage struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:uk_daily_usage,priority:1" json:"user_id"`
	Day       string    `gorm:"size:10;not null;index;uniqueIndex:uk_daily_usage,priority:2" json:"day"` // 2006-01-02
	Kind      string    `gorm:"size:20;not null;uniqueIndex:uk_daily_usage,priority:3" json:"kind"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DailyUsage) TableName() string {
	return "daily_usages"
}
