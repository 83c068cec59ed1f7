package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/repository"
	"github.com/qs3c/bible_search_server/internal/service"
	"github.com/qs3c/bible_search_server/internal/testutil"
)

func setupUserHandler(t *testing.T) (*UserHandler, *testContext) {
	t.Helper()
	ctx := setupTestContext(t)
	svc := service.NewUserService(repository.NewUserRepository(ctx.DB), repository.NewTransactionRepository(ctx.DB), testConfig())
	return NewUserHandler(svc), ctx
}

func TestUserHandler_Me(t *testing.T) {
	handler, ctx := setupUserHandler(t)
	user := testutil.TestUser(t, ctx.DB, testutil.WithEmail("me@example.com"))
	testutil.TestTransaction(t, ctx.DB, user.ID, "cs_me", model.TransactionSucceeded)

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.GET("/me", handler.Me)

	w := doJSON(router, "GET", "/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), user.Subject)

	data := parseResponse(t, w).Data.(map[string]interface{})
	profile := data["user"].(map[string]interface{})
	assert.Equal(t, "me@example.com", profile["email"])
	assert.Len(t, data["transactions"], 1)
}

func TestUserHandler_Me_Unauthorized(t *testing.T) {
	handler, _ := setupUserHandler(t)

	router := gin.New()
	router.GET("/me", handler.Me)

	w := doJSON(router, "GET", "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}

func TestUserHandler_Sync(t *testing.T) {
	handler, ctx := setupUserHandler(t)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.SubjectKey, "auth0|sync")
		c.Set(middleware.EmailKey, "sync@example.com")
		c.Next()
	})
	router.POST("/sync", handler.Sync)

	w := doJSON(router, "POST", "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(5), data["credits"])

	var count int64
	ctx.DB.Model(&model.User{}).Where("subject = ?", "auth0|sync").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUserHandler_Settings(t *testing.T) {
	handler, ctx := setupUserHandler(t)
	user := testutil.TestUser(t, ctx.DB)

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.GET("/settings", handler.GetSettings)
	router.PUT("/settings", handler.UpdateSettings)

	w := doJSON(router, "GET", "/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	settings := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "en", settings["language"])
	assert.Equal(t, true, settings["insights"])

	w = doJSON(router, "PUT", "/settings", map[string]interface{}{"language": "pl", "commentary": true})
	require.Equal(t, http.StatusOK, w.Code)
	settings = parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "pl", settings["language"])
	assert.Equal(t, true, settings["commentary"])
	assert.Equal(t, true, settings["newTestament"])

	w = doJSON(router, "PUT", "/settings", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
