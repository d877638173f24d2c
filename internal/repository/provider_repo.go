package repository

import (
	"context"

	"fundi/internal/models"

	"gorm.io/gorm"
)

type ProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) WithTx(tx *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: tx}
}

func (r *ProviderRepository) Create(ctx context.Context, p *models.Provider) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// GetUserID resolves the user account behind a provider profile.
func (r *ProviderRepository) GetUserID(ctx context.Context, providerID uint) (uint, error) {
	var p models.Provider
	err := r.db.WithContext(ctx).Select("id", "user_id").First(&p, providerID).Error
	if err != nil {
		return 0, err
	}
	return p.UserID, nil
}
