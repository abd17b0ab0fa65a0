package handler

import (
	"net/http"

	"farmlink/internal/middleware"
	"farmlink/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	referralSvc *service.ReferralService
}

func NewOrderHandler(referralSvc *service.ReferralService) *OrderHandler {
	return &OrderHandler{referralSvc: referralSvc}
}

// ApplyFreeDelivery spends one of the caller's free deliveries on their order.
// Repeating the call for the same order is a no-op.
// POST /orders/:order_id/free-delivery
func (h *OrderHandler) ApplyFreeDelivery(c *gin.Context) {
	orderID, ok := uuidParam(c, "order_id")
	if !ok {
		return
	}
	res, err := h.referralSvc.ApplyFreeDeliveryIfAvailable(c.Request.Context(), orderID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
