package handler

import (
	"errors"
	"net/http"

	"fundi/internal/domain"
	"fundi/internal/middleware"
	"fundi/internal/repository"
	"fundi/internal/service"
	"fundi/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type MpesaHandler struct {
	svc *service.PaymentService
}

func NewMpesaHandler(svc *service.PaymentService) *MpesaHandler {
	return &MpesaHandler{svc: svc}
}

type InitiateRequest struct {
	PhoneNumber string  `json:"phoneNumber" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	BookingID   uint    `json:"bookingId" binding:"required"`
}

// Initiate handles POST /payments/initiate and echoes the gateway's
// acknowledgement. The result arrives later on the callback.
func (h *MpesaHandler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := service.InitiateInput{
		BookingID:   req.BookingID,
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	}
	if middleware.GetRole(c) != domain.RoleAdmin {
		in.ClientID = middleware.GetUserID(c)
	}
	resp, err := h.svc.Initiate(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
		case errors.Is(err, service.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, service.ErrBookingNotPending), errors.Is(err, service.ErrPushInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, payment.ErrGatewayAuth), errors.Is(err, payment.ErrGatewayPush):
			log.Error().Err(err).Str("component", "mpesa").Uint("booking_id", req.BookingID).Msg("stk push failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate payment"})
		case errors.Is(err, repository.ErrPersistence):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record payment request"})
		default:
			log.Error().Err(err).Str("component", "mpesa").Msg("initiate failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate payment"})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status handles GET /payments/:checkoutRequestId/status.
func (h *MpesaHandler) Status(c *gin.Context) {
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin
	st, err := h.svc.Status(c.Request.Context(), middleware.GetUserID(c), isAdmin, c.Param("checkoutRequestId"))
	if errors.Is(err, service.ErrReconciliationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment request not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}
