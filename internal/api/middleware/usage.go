package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/pkg/response"
)

// UsageCounter counts one operation and reports whether the caller is still
// within the daily limit
type UsageCounter interface {
	Consume(ctx context.Context, userID int64, kind string) (bool, error)
}

// DailyLimit counts authenticated requests against the daily limit for kind.
// Anonymous requests pass through uncounted.
func DailyLimit(usage UsageCounter, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.Next()
			return
		}

		allowed, err := usage.Consume(c.Request.Context(), userID, kind)
		if err != nil {
			response.ServerError(c, "")
			return
		}
		if !allowed {
			response.RateLimitError(c, "")
			return
		}

		c.Next()
	}
}
