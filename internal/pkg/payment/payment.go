package payment

import (
	"context"
	"errors"
)

// Checkout session lifecycle notifications the server acts on
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "checkout.session.async_payment_failed"
)

// Metadata keys attached to every checkout session
const (
	MetaUserID  = "user_id"
	MetaSubject = "subject"
	MetaCredits = "credits"
)

var (
	ErrNotConfigured    = errors.New("payment gateway not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CheckoutRequest describes a credit purchase
type CheckoutRequest struct {
	UserID     int64
	Subject    string
	Email      string
	Credits    int
	UnitAmount int64 // minor units per credit
	Currency   string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the hosted page the client is redirected to
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified webhook notification about a checkout session
type Event struct {
	Type        string
	SessionID   string
	Metadata    map[string]string
	AmountTotal int64 // minor units
	Currency    string
	Email       string
}

// Gateway is the payment processor as seen by the payment service
type Gateway interface {
	Configured() bool
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
