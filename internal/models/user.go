package models

import (
	"time"

	"fundi/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:120;not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone        string         `gorm:"size:15" json:"phone"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;index" json:"role"` // CLIENT | PROVIDER | ADMIN
	FCMToken     string         `gorm:"size:512" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Provider *Provider `gorm:"foreignKey:UserID" json:"provider,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsProvider() bool { return u.Role == domain.RoleProvider }
func (u *User) IsAdmin() bool    { return u.Role == domain.RoleAdmin }
