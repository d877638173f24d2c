package handler

import (
	"net/http"
	"strconv"
	"time"

	"fundi/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	payments *service.PaymentService
}

func NewAdminHandler(payments *service.PaymentService) *AdminHandler {
	return &AdminHandler{payments: payments}
}

// PendingMpesaRequests handles GET /admin/mpesa-requests/pending: pushes that
// have not been answered by a callback within older_than (default 10m).
func (h *AdminHandler) PendingMpesaRequests(c *gin.Context) {
	age, err := time.ParseDuration(c.DefaultQuery("older_than", "10m"))
	if err != nil || age < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "older_than must be a duration like 10m"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.payments.StalePending(c.Request.Context(), age, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list), "older_than": age.String()})
}
