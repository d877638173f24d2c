package models

import (
	"time"

	"fundi/internal/domain"
)

type Payment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BookingID       uint       `gorm:"not null;index" json:"booking_id"`
	Amount          float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentMethod   string     `gorm:"size:30;not null" json:"payment_method"`
	Status          string     `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed, refunded
	MpesaReceipt    *string    `gorm:"size:50;uniqueIndex" json:"mpesa_receipt"`
	TransactionDate *time.Time `json:"transaction_date"`
	FailureReason   *string    `gorm:"size:255" json:"failure_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Booking Booking `gorm:"foreignKey:BookingID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}

// NewCompletedPayment always carries a receipt and transaction date.
func NewCompletedPayment(bookingID uint, amount float64, receipt string, txDate time.Time) *Payment {
	return &Payment{
		BookingID:       bookingID,
		Amount:          amount,
		PaymentMethod:   domain.PaymentMethodMpesa,
		Status:          domain.PaymentStatusCompleted,
		MpesaReceipt:    &receipt,
		TransactionDate: &txDate,
	}
}

// NewFailedPayment always carries a failure reason.
func NewFailedPayment(bookingID uint, amount float64, reason string) *Payment {
	return &Payment{
		BookingID:     bookingID,
		Amount:        amount,
		PaymentMethod: domain.PaymentMethodMpesa,
		Status:        domain.PaymentStatusFailed,
		FailureReason: &reason,
	}
}
