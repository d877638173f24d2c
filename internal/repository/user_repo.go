package repository

import (
	"strings"

	"fundi/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail matches case-insensitively; emails are stored lowercased.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetFCMToken replaces the user's device token. It returns
// gorm.ErrRecordNotFound when the user does not exist.
func (r *UserRepository) SetFCMToken(userID uint, token string) error {
	res := r.db.Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FCMToken returns the device token for userID, empty when none is registered.
func (r *UserRepository) FCMToken(userID uint) (string, error) {
	var tokens []string
	err := r.db.Model(&models.User{}).Where("id = ?", userID).Limit(1).Pluck("fcm_token", &tokens).Error
	if err != nil || len(tokens) == 0 {
		return "", err
	}
	return tokens[0], nil
}
