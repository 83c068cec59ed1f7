package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

// respondError maps a service error onto the response envelope. Unknown
// errors are recorded on the context for the access log and reach the
// client only as the generic server error.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidParameters):
		response.ParamError(c, "")
	case errors.Is(err, service.ErrUnauthorized):
		response.AuthError(c, "")
	case errors.Is(err, service.ErrInsufficientCredits):
		response.InsufficientCreditsError(c, "")
	case errors.Is(err, service.ErrRateLimitExceeded):
		response.RateLimitError(c, "")
	case errors.Is(err, service.ErrBackendUnavailable):
		response.BackendUnavailableError(c, "")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFoundError(c, "user not found")
	case errors.Is(err, service.ErrHistoryNotFound):
		response.NotFoundError(c, "history entry not found")
	case errors.Is(err, service.ErrSearchNotFound):
		response.NotFoundError(c, "search not found")
	case errors.Is(err, service.ErrTransactionNotFound):
		response.NotFoundError(c, "transaction not found")
	case errors.Is(err, service.ErrPaymentNotConfigured):
		response.BackendUnavailableError(c, "payments are not available")
	case errors.Is(err, service.ErrInvalidSignature):
		response.ParamError(c, "invalid signature")
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}

