package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess             = 0
	CodeParamError          = 1000
	CodeAuthFailed          = 1001
	CodePermissionDenied    = 1002
	CodeResourceNotFound    = 1003
	CodeInsufficientCredits = 1004
	CodeDuplicateAction     = 1005
	CodeRateLimited         = 1006
	CodeServerError         = 5000
	CodeBackendUnavailable  = 5003
)

// codeMessages is the fixed set of client-facing messages
var codeMessages = map[int]string{
	CodeSuccess:             "success",
	CodeParamError:          "invalid parameters",
	CodeAuthFailed:          "authentication required",
	CodePermissionDenied:    "permission denied",
	CodeResourceNotFound:    "resource not found",
	CodeInsufficientCredits: "insufficient credits",
	CodeDuplicateAction:     "duplicate action",
	CodeRateLimited:         "daily limit reached, try again tomorrow",
	CodeServerError:         "internal server error",
	CodeBackendUnavailable:  "search service unavailable",
}

var codeStatus = map[int]int{
	CodeSuccess:             http.StatusOK,
	CodeParamError:          http.StatusBadRequest,
	CodeAuthFailed:          http.StatusUnauthorized,
	CodePermissionDenied:    http.StatusForbidden,
	CodeResourceNotFound:    http.StatusNotFound,
	CodeInsufficientCredits: http.StatusPaymentRequired,
	CodeDuplicateAction:     http.StatusConflict,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodeServerError:         http.StatusInternalServerError,
	CodeBackendUnavailable:  http.StatusServiceUnavailable,
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData wraps an offset-paginated list
type PageData struct {
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Items  interface{} `json:"items"`
}

// Message returns the default client message for code
func Message(code int) string {
	return codeMessages[code]
}

// Status returns the HTTP status used for code
func Status(code int) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

func SuccessPage(c *gin.Context, total int64, limit, offset int, items interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: PageData{
			Total:  total,
			Limit:  limit,
			Offset: offset,
			Items:  items,
		},
	})
}

// Error aborts with the envelope for code and its mapped HTTP status. An
// empty message falls back to the code's default.
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.AbortWithStatusJSON(Status(code), Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

func InsufficientCreditsError(c *gin.Context, message string) {
	Error(c, CodeInsufficientCredits, message)
}

func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

func RateLimitError(c *gin.Context, message string) {
	Error(c, CodeRateLimited, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BackendUnavailableError(c *gin.Context, message string) {
	Error(c, CodeBackendUnavailable, message)
}
