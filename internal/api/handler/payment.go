package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 64 << 10
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// Checkout opens a hosted checkout session for a credit package
// POST /api/v1/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, "credits must be between 1 and 1000")
			return
		}
	}

	resp, err := h.paymentService.Checkout(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// Cancel marks the caller's pending session canceled
// POST /api/v1/transactions/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CancelTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "session_id is required")
		return
	}

	item, err := h.paymentService.Cancel(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, item)
}

// Webhook receives payment processor notifications. The raw body is needed
// for signature verification.
// POST /api/v1/webhooks/payment
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ParamError(c, "")
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"received": true})
}
