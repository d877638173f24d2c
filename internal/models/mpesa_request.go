package models

import "time"

// MpesaRequest records one STK push attempt. Rows are never deleted and
// Processed only ever goes false -> true.
type MpesaRequest struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	BookingID         uint      `gorm:"not null;index" json:"booking_id"`
	MerchantRequestID string    `gorm:"size:100;not null;uniqueIndex" json:"merchant_request_id"`
	CheckoutRequestID string    `gorm:"size:100;not null;index" json:"checkout_request_id"`
	PhoneNumber       string    `gorm:"size:15;not null" json:"phone_number"`
	Amount            float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Processed         bool      `gorm:"not null;default:false;index" json:"processed"`
	CreatedAt         time.Time `json:"created_at"`

	Booking Booking `gorm:"foreignKey:BookingID" json:"-"`
}

func (MpesaRequest) TableName() string {
	return "mpesa_requests"
}
