package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fundi/internal/models"
	"fundi/internal/repository"
	"fundi/pkg/payment"
	"fundi/pkg/phone"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PaymentService starts STK pushes for bookings and reports on them.
type PaymentService struct {
	provider payment.Provider
	bookings *repository.BookingRepository
	ledger   *repository.MpesaRequestRepository
	payments *repository.PaymentRepository
}

func NewPaymentService(provider payment.Provider, bookings *repository.BookingRepository, ledger *repository.MpesaRequestRepository, payments *repository.PaymentRepository) *PaymentService {
	return &PaymentService{provider: provider, bookings: bookings, ledger: ledger, payments: payments}
}

type InitiateInput struct {
	ClientID    uint // 0 skips the ownership check
	BookingID   uint
	PhoneNumber string
	Amount      float64
}

// Initiate normalizes the payer's phone, sends the STK push and records the
// accepted request in the ledger. Only a pending booking with no push awaiting
// its callback may start a new one. The gateway ids only exist after the push,
// so a ledger failure here leaves a push whose callback will find no row.
func (s *PaymentService) Initiate(ctx context.Context, in InitiateInput) (*payment.STKPushResponse, error) {
	msisdn := phone.Format(in.PhoneNumber)
	if !phone.Validate(msisdn) {
		return nil, ErrInvalidPhone
	}
	booking, err := s.bookings.GetByID(ctx, in.BookingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load booking: %v", repository.ErrPersistence, err)
	}
	if in.ClientID != 0 && booking.ClientID != in.ClientID {
		return nil, ErrBookingNotFound
	}
	if !booking.IsPending() {
		return nil, ErrBookingNotPending
	}
	inFlight, err := s.ledger.HasUnprocessedForBooking(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: check pending pushes: %v", repository.ErrPersistence, err)
	}
	if inFlight {
		return nil, ErrPushInFlight
	}

	resp, err := s.provider.InitiatePush(ctx, payment.STKPushRequest{
		PhoneNumber:      msisdn,
		Amount:           in.Amount,
		AccountReference: fmt.Sprintf("BOOKING-%d", booking.ID),
		Description:      fmt.Sprintf("Payment for booking #%d", booking.ID),
	})
	if err != nil {
		return nil, err
	}
	if err := s.ledger.RecordRequest(ctx, booking.ID, resp.MerchantRequestID, resp.CheckoutRequestID, msisdn, in.Amount); err != nil {
		log.Error().Err(err).Str("component", "mpesa").
			Str("merchant_request_id", resp.MerchantRequestID).
			Uint("booking_id", booking.ID).
			Msg("push accepted but ledger write failed; callback will be orphaned")
		return nil, err
	}
	log.Info().Str("component", "mpesa").
		Str("merchant_request_id", resp.MerchantRequestID).
		Str("checkout_request_id", resp.CheckoutRequestID).
		Uint("booking_id", booking.ID).
		Msg("stk push recorded")
	return resp, nil
}

// PushStatus combines the local ledger row, the booking's recorded payments
// and the gateway's view of a push.
type PushStatus struct {
	CheckoutRequestID string                    `json:"checkout_request_id"`
	MerchantRequestID string                    `json:"merchant_request_id"`
	BookingID         uint                      `json:"booking_id"`
	Amount            float64                   `json:"amount"`
	Processed         bool                      `json:"processed"`
	Payments          []models.Payment          `json:"payments"`
	Gateway           *payment.STKQueryResponse `json:"gateway,omitempty"`
	GatewayError      string                    `json:"gateway_error,omitempty"`
}

// Status looks up a push by checkout request id. Only the booking's client
// may see it unless asAdmin is set. It never reconciles.
func (s *PaymentService) Status(ctx context.Context, userID uint, asAdmin bool, checkoutRequestID string) (*PushStatus, error) {
	req, err := s.ledger.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReconciliationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrPersistence, err)
	}
	if !asAdmin && req.Booking.ClientID != userID {
		return nil, ErrReconciliationNotFound
	}
	st := &PushStatus{
		CheckoutRequestID: req.CheckoutRequestID,
		MerchantRequestID: req.MerchantRequestID,
		BookingID:         req.BookingID,
		Amount:            req.Amount,
		Processed:         req.Processed,
	}
	st.Payments, err = s.payments.ListByBookingID(ctx, req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments: %v", repository.ErrPersistence, err)
	}
	q, err := s.provider.QueryPush(ctx, checkoutRequestID)
	if err != nil {
		st.GatewayError = err.Error()
		return st, nil
	}
	st.Gateway = q
	return st, nil
}

// StalePending lists unprocessed pushes older than age.
func (s *PaymentService) StalePending(ctx context.Context, age time.Duration, limit int) ([]models.MpesaRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.ledger.ListStaleUnprocessed(ctx, time.Now().Add(-age), limit)
}
