package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SandboxProvider fakes the gateway for local development. It accepts every
// push and hands back random request ids; callbacks must be posted by hand.
type SandboxProvider struct{}

func (SandboxProvider) InitiatePush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	out := &STKPushResponse{
		MerchantRequestID:   "sbx-" + id[:12],
		CheckoutRequestID:   "ws_CO_sbx_" + id[12:],
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}
	log.Warn().Str("component", "mpesa-sandbox").Str("merchant_request_id", out.MerchantRequestID).
		Str("phone", req.PhoneNumber).Float64("amount", req.Amount).Msg("sandbox push, no prompt sent")
	return out, nil
}

func (SandboxProvider) QueryPush(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	return &STKQueryResponse{
		CheckoutRequestID:   checkoutRequestID,
		ResponseCode:        "0",
		ResponseDescription: "The service request has been accepted successfully",
		ResultCode:          "",
		ResultDesc:          "sandbox: waiting for manual callback",
	}, nil
}
