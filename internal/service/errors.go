package service

import "errors"

var (
	ErrInvalidPhone           = errors.New("invalid phone number")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrBookingNotPending      = errors.New("booking is not awaiting payment")
	ErrPushInFlight           = errors.New("booking already has a payment request in progress")
	ErrReconciliationNotFound = errors.New("no pending mpesa request for callback")
	ErrReconciliationTx       = errors.New("callback reconciliation failed")
)
