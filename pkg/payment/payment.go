package payment

import (
	"context"
)

// STKPushRequest is what the booking flow hands to a provider when it wants
// the payer prompted on their phone.
type STKPushRequest struct {
	PhoneNumber      string  // canonical 2547XXXXXXXX
	Amount           float64 // sent as given
	AccountReference string
	Description      string
}

// STKPushResponse is the gateway's synchronous acknowledgement of a push.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResponse is the gateway's view of an earlier push.
type STKQueryResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          Code   `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

type Provider interface {
	InitiatePush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
	QueryPush(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error)
}
