package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/service"
)

type HealthHandler struct {
	healthService *service.HealthService
}

func NewHealthHandler(healthService *service.HealthService) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

// Check reports dependency status; 503 only when the database is down
// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	resp, available := h.healthService.Check(c.Request.Context())
	status := http.StatusOK
	if !available {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
