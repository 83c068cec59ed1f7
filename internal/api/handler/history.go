package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

const maxHistoryPage = 100

type HistoryHandler struct {
	historyService *service.HistoryService
}

func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// List returns the caller's history, newest first
// GET /api/v1/history
func (h *HistoryHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.HistoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, "")
		return
	}
	if req.Limit <= 0 || req.Limit > maxHistoryPage {
		req.Limit = maxHistoryPage
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	items, total, err := h.historyService.List(c.Request.Context(), userID, req.Limit, req.Offset)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessPage(c, total, req.Limit, req.Offset, items)
}

// Append links the caller to an existing search or stores a full entry
// POST /api/v1/history
func (h *HistoryHandler) Append(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.AppendHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "")
		return
	}

	item, err := h.historyService.Append(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, item)
}

// Delete removes one of the caller's entries; the shared search stays
// DELETE /api/v1/history/:id
func (h *HistoryHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid history id")
		return
	}

	if err := h.historyService.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "deleted", nil)
}
