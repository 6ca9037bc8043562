package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamhaven-session-go/internal/entitlement"
	"streamhaven-session-go/internal/session"
)

// BillingHandler exposes coupon redemption.
type BillingHandler struct {
	controller *session.Controller
	logger     *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(controller *session.Controller, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{controller: controller, logger: logger}
}

// RedeemCoupon handles POST /api/v1/billing/redeem. The three redemption
// failure modes map to distinct status codes so the client can phrase the
// error: unknown code (404), already used (409), and an activation failure
// after successful validation (502, retryable).
func (h *BillingHandler) RedeemCoupon(c *gin.Context) {
	var req RedeemCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	coupon, err := h.controller.RedeemCoupon(c.Request.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "No active session"})
		case errors.Is(err, entitlement.ErrCouponNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Coupon not found"})
		case errors.Is(err, entitlement.ErrCouponAlreadyUsed):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Coupon has already been used"})
		case errors.Is(err, entitlement.ErrUnknownPlan):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "Coupon references an unknown plan"})
		case errors.Is(err, entitlement.ErrActivationFailed):
			h.logger.Error("Coupon validated but activation failed", zap.String("code", req.Code), zap.Error(err))
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Activation failed, please retry", Details: err.Error()})
		default:
			h.logger.Error("Coupon redemption failed", zap.String("code", req.Code), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to redeem coupon", Details: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Coupon redeemed", Data: coupon})
}
