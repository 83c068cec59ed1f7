package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Me returns the caller's profile and transactions
// GET /api/v1/user/me
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	me, err := h.userService.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, me)
}

// Sync creates the caller's user on first sight and returns the profile
// POST /api/v1/user/sync
func (h *UserHandler) Sync(c *gin.Context) {
	subject, email := middleware.GetIdentity(c)
	if subject == "" {
		response.AuthError(c, "")
		return
	}

	profile, err := h.userService.Sync(c.Request.Context(), subject, email)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, profile)
}

// GetSettings returns stored settings merged over the defaults
// GET /api/v1/user/settings
func (h *UserHandler) GetSettings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	settings, err := h.userService.GetSettings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, settings)
}

// UpdateSettings merges the supplied keys into the stored settings
// PUT /api/v1/user/settings
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var update map[string]interface{}
	if err := c.ShouldBindJSON(&update); err != nil {
		response.ParamError(c, "")
		return
	}

	settings, err := h.userService.UpdateSettings(c.Request.Context(), userID, update)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "updated", settings)
}
