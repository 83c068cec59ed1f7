package model

import (
	"time"

	"gorm.io/datatypes"
)

// User is created lazily on first authenticated request, keyed by the
// identity provider's subject.
type User struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Subject   string         `gorm:"size:255;not null;uniqueIndex" json:"-"`
	Email     string         `gorm:"size:255" json:"email"`
	Credits   int            `gorm:"not null;default:0" json:"credits"`
	Settings  datatypes.JSON `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
