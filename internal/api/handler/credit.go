package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

type CreditHandler struct {
	creditService *service.CreditService
}

func NewCreditHandler(creditService *service.CreditService) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
	}
}

// Check returns the balance; 402 when it cannot pay for one search
// GET /api/v1/credits
func (h *CreditHandler) Check(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	balance, err := h.creditService.CheckBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, &dto.CreditsResponse{Credits: balance})
}

// Deduct takes amount credits (default one search) when the balance covers
// it. A short balance is reported with success=false, not as an error.
// POST /api/v1/credits/deduct
func (h *CreditHandler) Deduct(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.DeductRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, "")
			return
		}
	}
	if req.Amount < 0 {
		response.ParamError(c, "amount must be positive")
		return
	}

	balance, deducted, err := h.creditService.Deduct(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, &dto.DeductResponse{Success: deducted, Credits: balance})
}
