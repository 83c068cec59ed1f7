package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

type MediaHandler struct {
	mediaService *service.MediaService
}

func NewMediaHandler(mediaService *service.MediaService) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
	}
}

// Search returns images related to a query
// GET /api/v1/media?q=&lang=
func (h *MediaHandler) Search(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.MediaRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, "")
		return
	}

	resp, err := h.mediaService.Search(c.Request.Context(), userID, req.Query, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}
