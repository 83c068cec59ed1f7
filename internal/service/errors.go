package service

import "errors"

// Client-facing failure kinds. Handlers map each to one response code.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUserNotFound        = errors.New("user not found")
	ErrRateLimitExceeded   = errors.New("daily limit reached")
	ErrBackendUnavailable  = errors.New("search backend unavailable")
	ErrPersistenceFailure  = errors.New("failed to persist search")
	ErrInvalidParameters   = errors.New("invalid parameters")

	ErrHistoryNotFound      = errors.New("history entry not found")
	ErrSearchNotFound       = errors.New("search not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrPaymentNotConfigured = errors.New("payments are not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)
