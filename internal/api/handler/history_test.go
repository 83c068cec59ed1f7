package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bible_search_server/internal/repository"
	"github.com/qs3c/bible_search_server/internal/service"
	"github.com/qs3c/bible_search_server/internal/testutil"
)

func historyRouter(ctx *testContext, userID int64) *gin.Engine {
	svc := service.NewHistoryService(
		repository.NewSearchRepository(ctx.DB),
		repository.NewUserSearchRepository(ctx.DB),
		nopPublisher{},
		testLogger(),
	)
	h := NewHistoryHandler(svc)

	router := gin.New()
	router.Use(mockAuth(userID))
	router.GET("/history", h.List)
	router.POST("/history", h.Append)
	router.DELETE("/history/:id", h.Delete)
	return router
}

func TestHistoryHandler_ListPaging(t *testing.T) {
	ctx := setupTestContext(t)
	user := testutil.TestUser(t, ctx.DB)
	for i := 0; i < 3; i++ {
		search := testutil.TestCanonicalSearch(t, ctx.DB, testutil.WithQuery(fmt.Sprintf("q%d", i)))
		testutil.TestUserSearch(t, ctx.DB, user.ID, search.ID)
	}
	router := historyRouter(ctx, user.ID)

	w := doJSON(router, "GET", "/history?limit=2&offset=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(3), page["total"])
	assert.Equal(t, float64(2), page["limit"])
	assert.Len(t, page["items"], 2)

	w = doJSON(router, "GET", "/history?limit=500", nil)
	page = parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(100), page["limit"])
	assert.Len(t, page["items"], 3)
}

func TestHistoryHandler_AppendAndDelete(t *testing.T) {
	ctx := setupTestContext(t)
	user := testutil.TestUser(t, ctx.DB)
	search := testutil.TestCanonicalSearch(t, ctx.DB)
	router := historyRouter(ctx, user.ID)

	w := doJSON(router, "POST", "/history", map[string]int64{"search_id": search.ID})
	require.Equal(t, http.StatusOK, w.Code)
	item := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "What is love?", item["query"])
	id := int64(item["id"].(float64))

	w = doJSON(router, "POST", "/history", map[string]int64{"search_id": 424242})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(historyRouter(ctx, user.ID+1000), "DELETE", fmt.Sprintf("/history/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, "DELETE", fmt.Sprintf("/history/%d", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "DELETE", "/history/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
