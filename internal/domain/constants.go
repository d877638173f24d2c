package domain

const (
	RoleClient   = "CLIENT"
	RoleProvider = "PROVIDER"
	RoleAdmin    = "ADMIN"
)

// Booking statuses. The payment flow only ever moves a booking out of
// BookingStatusPending.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

const PaymentMethodMpesa = "mpesa"

const (
	NotificationPaymentReceived = "payment_received"
)

const (
	AuditMpesaCompleted = "mpesa_payment_completed"
	AuditMpesaFailed    = "mpesa_payment_failed"
)
