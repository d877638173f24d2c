package models

import (
	"time"

	"gorm.io/gorm"
)

// Provider is a service provider's marketplace profile. The payment flow only
// reads UserID from it, to address notifications.
type Provider struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	BusinessName string         `gorm:"size:150;not null" json:"business_name"`
	Category     string         `gorm:"size:60;index" json:"category"` // plumbing, cleaning, electrical, ...
	Location     string         `gorm:"size:120" json:"location"`
	IsVerified   bool           `gorm:"default:false" json:"is_verified"`
	IsActive     bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Provider) TableName() string {
	return "providers"
}
