package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"fundi/internal/service"
	"fundi/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type MpesaWebhookHandler struct {
	reconciler *service.Reconciler
}

func NewMpesaWebhookHandler(reconciler *service.Reconciler) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{reconciler: reconciler}
}

// Handle processes a Daraja STK callback. A 200 tells Daraja to stop
// redelivering, so it is only sent once the result is committed or the
// payload is unusable. A 500 leaves the ledger row pending for the next
// delivery.
func (h *MpesaWebhookHandler) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		log.Error().Err(err).Str("component", "mpesa_callback").Msg("read callback body")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
		return
	}
	log.Debug().Str("component", "mpesa_callback").RawJSON("body", safeJSON(body)).Msg("callback received")

	// Unparsable payloads are acknowledged and only logged.
	result, err := payment.ParseCallback(body)
	if err != nil {
		log.Error().Err(err).Str("component", "mpesa_callback").RawJSON("body", safeJSON(body)).Msg("unparsable callback ignored")
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Ignored: invalid payload"})
		return
	}
	_, err = h.reconciler.Reconcile(c.Request.Context(), result)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
	case errors.Is(err, service.ErrReconciliationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ResultCode": 0, "ResultDesc": "No pending request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
	}
}

// safeJSON keeps a malformed body from corrupting structured log output.
func safeJSON(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	b, _ := json.Marshal(string(body))
	return b
}
