package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fundi/internal/domain"
	"fundi/internal/models"
	"fundi/internal/repository"
	"fundi/pkg/payment"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Broadcaster pushes realtime events to a user's open connections.
type Broadcaster interface {
	BroadcastToUser(userID uint, payload interface{})
}

// Outcome describes what a reconciliation committed.
type Outcome struct {
	MerchantRequestID string
	CheckoutRequestID string
	BookingID         uint
	ClientID          uint
	ProviderUserID    uint
	PaymentID         uint
	PaymentStatus     string
	Amount            float64
	Receipt           string
	FailureReason     string
	BookingUpdated    bool // false when the booking had already left pending

	notification *models.Notification
}

// PaymentResultEvent is the websocket message sent to the paying client.
type PaymentResultEvent struct {
	Type              string  `json:"type"`
	BookingID         uint    `json:"booking_id"`
	MerchantRequestID string  `json:"merchant_request_id"`
	CheckoutRequestID string  `json:"checkout_request_id"`
	Status            string  `json:"status"`
	Amount            float64 `json:"amount"`
	Receipt           string  `json:"receipt,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

// Reconciler applies STK callbacks to the ledger, payments, bookings and
// notifications. Every callback is applied at most once.
type Reconciler struct {
	db            *gorm.DB
	ledger        *repository.MpesaRequestRepository
	payments      *repository.PaymentRepository
	bookings      *repository.BookingRepository
	providers     *repository.ProviderRepository
	audit         *repository.AuditLogRepository
	notifications *NotificationService
	hub           Broadcaster
}

func NewReconciler(
	db *gorm.DB,
	ledger *repository.MpesaRequestRepository,
	payments *repository.PaymentRepository,
	bookings *repository.BookingRepository,
	providers *repository.ProviderRepository,
	audit *repository.AuditLogRepository,
	notifications *NotificationService,
	hub Broadcaster,
) *Reconciler {
	return &Reconciler{
		db:            db,
		ledger:        ledger,
		payments:      payments,
		bookings:      bookings,
		providers:     providers,
		audit:         audit,
		notifications: notifications,
		hub:           hub,
	}
}

// Reconcile applies result in one transaction. It returns
// ErrReconciliationNotFound when there is no unprocessed ledger row for the
// merchant request id, and wraps ErrReconciliationTx when anything else fails,
// in which case nothing was written.
func (r *Reconciler) Reconcile(ctx context.Context, result payment.STKResult) (*Outcome, error) {
	var out *Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := r.ledger.WithTx(tx)
		req, err := ledger.FindUnprocessedByMerchantID(ctx, result.RequestID())
		if err != nil {
			return fmt.Errorf("lock ledger row: %w", err)
		}
		if req == nil {
			return ErrReconciliationNotFound
		}
		booking, err := r.bookings.WithTx(tx).GetByIDWithDeleted(ctx, req.BookingID)
		if err != nil {
			return fmt.Errorf("load booking %d: %w", req.BookingID, err)
		}

		switch res := result.(type) {
		case payment.STKSuccess:
			out, err = r.applySuccess(ctx, tx, req, booking, res)
		case payment.STKFailure:
			out, err = r.applyFailure(ctx, tx, req, booking, res)
		default:
			err = fmt.Errorf("unsupported result %T", result)
		}
		if err != nil {
			return err
		}

		n, err := ledger.MarkProcessed(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("mark ledger row %d: %w", req.ID, err)
		}
		if n != 1 {
			return fmt.Errorf("ledger row %d was processed concurrently", req.ID)
		}
		return nil
	})
	if errors.Is(err, ErrReconciliationNotFound) {
		log.Warn().Str("component", "mpesa_callback").Str("merchant_request_id", result.RequestID()).
			Msg("no pending request for callback")
		return nil, err
	}
	if err != nil {
		log.Error().Err(err).Str("component", "mpesa_callback").Str("merchant_request_id", result.RequestID()).
			Msg("reconciliation rolled back")
		return nil, fmt.Errorf("%w: %v", ErrReconciliationTx, err)
	}

	log.Info().Str("component", "mpesa_callback").
		Str("merchant_request_id", out.MerchantRequestID).
		Uint("booking_id", out.BookingID).
		Str("status", out.PaymentStatus).
		Bool("booking_updated", out.BookingUpdated).
		Msg("callback reconciled")
	r.afterCommit(ctx, out)
	return out, nil
}

func (r *Reconciler) applySuccess(ctx context.Context, tx *gorm.DB, req *models.MpesaRequest, booking *models.Booking, res payment.STKSuccess) (*Outcome, error) {
	p := models.NewCompletedPayment(req.BookingID, res.Amount, res.Receipt, res.TransactionDate)
	if err := r.payments.WithTx(tx).Create(ctx, p); err != nil {
		return nil, fmt.Errorf("insert completed payment: %w", err)
	}
	updated, err := r.bookings.WithTx(tx).TransitionFromPending(ctx, booking.ID, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm booking %d: %w", booking.ID, err)
	}
	providerUserID, err := r.providers.WithTx(tx).GetUserID(ctx, booking.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %d: %w", booking.ProviderID, err)
	}
	n, err := r.notifications.RecordPaymentReceived(tx.WithContext(ctx), providerUserID, booking.ID, res.Receipt, res.Amount)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	err = r.writeAudit(tx, booking, domain.AuditMpesaCompleted, req.MerchantRequestID, map[string]interface{}{
		"booking_id": booking.ID,
		"payment_id": p.ID,
		"receipt":    res.Receipt,
		"amount":     res.Amount,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		MerchantRequestID: req.MerchantRequestID,
		CheckoutRequestID: req.CheckoutRequestID,
		BookingID:         booking.ID,
		ClientID:          booking.ClientID,
		ProviderUserID:    providerUserID,
		PaymentID:         p.ID,
		PaymentStatus:     p.Status,
		Amount:            p.Amount,
		Receipt:           res.Receipt,
		BookingUpdated:    updated,
		notification:      n,
	}, nil
}

// applyFailure records the push amount from the ledger, since failed
// callbacks carry no metadata.
func (r *Reconciler) applyFailure(ctx context.Context, tx *gorm.DB, req *models.MpesaRequest, booking *models.Booking, res payment.STKFailure) (*Outcome, error) {
	p := models.NewFailedPayment(req.BookingID, req.Amount, res.Description)
	if err := r.payments.WithTx(tx).Create(ctx, p); err != nil {
		return nil, fmt.Errorf("insert failed payment: %w", err)
	}
	updated, err := r.bookings.WithTx(tx).TransitionFromPending(ctx, booking.ID, domain.BookingStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", booking.ID, err)
	}
	err = r.writeAudit(tx, booking, domain.AuditMpesaFailed, req.MerchantRequestID, map[string]interface{}{
		"booking_id":  booking.ID,
		"payment_id":  p.ID,
		"result_code": res.Code,
		"reason":      res.Description,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		MerchantRequestID: req.MerchantRequestID,
		CheckoutRequestID: req.CheckoutRequestID,
		BookingID:         booking.ID,
		ClientID:          booking.ClientID,
		PaymentID:         p.ID,
		PaymentStatus:     p.Status,
		Amount:            p.Amount,
		FailureReason:     res.Description,
		BookingUpdated:    updated,
	}, nil
}

func (r *Reconciler) writeAudit(tx *gorm.DB, booking *models.Booking, action, merchantRequestID string, meta map[string]interface{}) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}
	err = r.audit.WithTx(tx).Create(&models.AuditLog{
		UserID:     &booking.ClientID,
		BookingID:  &booking.ID,
		Action:     action,
		Resource:   "mpesa_request",
		ResourceID: merchantRequestID,
		Metadata:   string(b),
	})
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// afterCommit runs side effects that must not influence the callback response.
func (r *Reconciler) afterCommit(ctx context.Context, out *Outcome) {
	if r.hub != nil {
		r.hub.BroadcastToUser(out.ClientID, PaymentResultEvent{
			Type:              "payment_result",
			BookingID:         out.BookingID,
			MerchantRequestID: out.MerchantRequestID,
			CheckoutRequestID: out.CheckoutRequestID,
			Status:            out.PaymentStatus,
			Amount:            out.Amount,
			Receipt:           out.Receipt,
			Reason:            out.FailureReason,
		})
	}
	if r.notifications != nil && out.notification != nil {
		r.notifications.Push(context.WithoutCancel(ctx), out.notification)
	}
}
