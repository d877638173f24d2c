package repository

import (
	"context"

	"fundi/internal/domain"
	"fundi/internal/models"

	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) WithTx(tx *gorm.DB) *BookingRepository {
	return &BookingRepository{db: tx}
}

func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	err := r.db.WithContext(ctx).First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByIDWithDeleted also returns soft-deleted bookings. Payments that settle
// after a booking was removed still need it.
func (r *BookingRepository) GetByIDWithDeleted(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	err := r.db.WithContext(ctx).Unscoped().First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// TransitionFromPending moves a pending booking to status. It reports false
// when the booking was not pending or was deleted, leaving it untouched.
func (r *BookingRepository) TransitionFromPending(ctx context.Context, id uint, status string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, domain.BookingStatusPending).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
