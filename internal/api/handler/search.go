package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

type SearchHandler struct {
	searchService *service.SearchService
	log           *logrus.Logger
}

func NewSearchHandler(searchService *service.SearchService, log *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		log:           log,
	}
}

// Search streams a live or replayed answer as server-sent events. Refusals
// that happen before the first byte are ordinary JSON envelopes.
// POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "")
		return
	}

	userID, _ := middleware.GetUserID(c)
	ctx := c.Request.Context()

	plan, err := h.searchService.Prepare(ctx, &service.SearchInput{
		UserID:   userID,
		Query:    req.Query,
		Settings: req.Settings,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	defer plan.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	outcome, err := h.searchService.Stream(ctx, plan, c.Writer)

	entry := middleware.LoggerFrom(c, h.log).WithField("cache_hit", plan.Hit != nil)
	if outcome != nil {
		entry = entry.WithFields(logrus.Fields{
			"search_id": outcome.SearchID,
			"persisted": outcome.Persisted,
			"billed":    outcome.Billed,
		})
	}
	switch {
	case err == nil:
		entry.Debug("search stream finished")
	case errors.Is(err, context.Canceled):
		entry.Debug("client went away mid-stream")
	default:
		entry.WithError(err).Warn("search stream failed")
	}
}
