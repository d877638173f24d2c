package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fundi/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MpesaRequestRepository is the ledger of STK push attempts.
type MpesaRequestRepository struct {
	db *gorm.DB
}

func NewMpesaRequestRepository(db *gorm.DB) *MpesaRequestRepository {
	return &MpesaRequestRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *MpesaRequestRepository) WithTx(tx *gorm.DB) *MpesaRequestRepository {
	return &MpesaRequestRepository{db: tx}
}

// RecordRequest inserts a new unprocessed row for a push the gateway accepted.
func (r *MpesaRequestRepository) RecordRequest(ctx context.Context, bookingID uint, merchantRequestID, checkoutRequestID, phoneNumber string, amount float64) error {
	db := r.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Booking{}).Where("id = ?", bookingID).Count(&n).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: booking %d not found", ErrPersistence, bookingID)
	}
	req := &models.MpesaRequest{
		BookingID:         bookingID,
		MerchantRequestID: merchantRequestID,
		CheckoutRequestID: checkoutRequestID,
		PhoneNumber:       phoneNumber,
		Amount:            amount,
	}
	if err := db.Create(req).Error; err != nil {
		return fmt.Errorf("%w: record %s: %v", ErrPersistence, merchantRequestID, err)
	}
	return nil
}

// FindUnprocessedByMerchantID returns the unprocessed row for merchantRequestID,
// or nil when there is none. The row is read with FOR UPDATE, so inside a
// transaction concurrent callers block until the holder commits.
func (r *MpesaRequestRepository) FindUnprocessedByMerchantID(ctx context.Context, merchantRequestID string) (*models.MpesaRequest, error) {
	var req models.MpesaRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_request_id = ? AND processed = ?", merchantRequestID, false).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// HasUnprocessedForBooking reports whether a push for bookingID is still
// waiting for its callback.
func (r *MpesaRequestRepository) HasUnprocessedForBooking(ctx context.Context, bookingID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.MpesaRequest{}).
		Where("booking_id = ? AND processed = ?", bookingID, false).
		Count(&n).Error
	return n > 0, err
}

// MarkProcessed flips processed to true. A second call affects zero rows.
func (r *MpesaRequestRepository) MarkProcessed(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.MpesaRequest{}).
		Where("id = ? AND processed = ?", id, false).
		Update("processed", true)
	return res.RowsAffected, res.Error
}

func (r *MpesaRequestRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.MpesaRequest, error) {
	var req models.MpesaRequest
	err := r.db.WithContext(ctx).Preload("Booking").Where("checkout_request_id = ?", checkoutRequestID).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListStaleUnprocessed returns pushes that never got a callback, oldest first.
func (r *MpesaRequestRepository) ListStaleUnprocessed(ctx context.Context, before time.Time, limit int) ([]models.MpesaRequest, error) {
	var list []models.MpesaRequest
	err := r.db.WithContext(ctx).
		Where("processed = ? AND created_at < ?", false, before).
		Order("created_at ASC").Limit(limit).Find(&list).Error
	return list, err
}
