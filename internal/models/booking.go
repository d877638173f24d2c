package models

import (
	"time"

	"fundi/internal/domain"

	"gorm.io/gorm"
)

type Booking struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ClientID    uint           `gorm:"not null;index" json:"client_id"`
	ProviderID  uint           `gorm:"not null;index" json:"provider_id"`
	ServiceName string         `gorm:"size:150" json:"service_name"`
	ScheduledAt *time.Time     `json:"scheduled_at"`
	Address     string         `gorm:"size:255" json:"address"`
	TotalAmount float64        `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status      string         `gorm:"size:20;not null;default:'pending';index" json:"status"` // pending, confirmed, cancelled, completed
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Client   User     `gorm:"foreignKey:ClientID" json:"-"`
	Provider Provider `gorm:"foreignKey:ProviderID" json:"-"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) IsPending() bool { return b.Status == domain.BookingStatusPending }
