package repository

import (
	"context"

	"fundi/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// ListByBookingID returns every payment recorded for a booking, newest first.
func (r *PaymentRepository) ListByBookingID(ctx context.Context, bookingID uint) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at DESC").Find(&list).Error
	return list, err
}
