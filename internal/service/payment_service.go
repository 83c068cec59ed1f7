package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/payment"
	"github.com/qs3c/bible_search_server/internal/repository"
)

// PaymentService sells credits through the hosted checkout and applies the
// processor's notifications. Crediting is keyed by session id and happens at
// most once per session.
type PaymentService struct {
	gateway  payment.Gateway
	txRepo   *repository.TransactionRepository
	userRepo *repository.UserRepository
	users    *UserService
	cfg      *config.Config
	log      *logrus.Logger
}

func NewPaymentService(
	gateway payment.Gateway,
	txRepo *repository.TransactionRepository,
	userRepo *repository.UserRepository,
	users *UserService,
	cfg *config.Config,
	log *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		gateway:  gateway,
		txRepo:   txRepo,
		userRepo: userRepo,
		users:    users,
		cfg:      cfg,
		log:      log,
	}
}

// Checkout opens a hosted checkout for credits and records it as pending
func (s *PaymentService) Checkout(ctx context.Context, userID int64, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if !s.gateway.Configured() {
		return nil, ErrPaymentNotConfigured
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	credits := req.Credits
	if credits <= 0 {
		credits = s.cfg.Payment.DefaultCredits
	}
	currency := strings.ToLower(s.cfg.Payment.Currency)

	session, err := s.gateway.CreateCheckout(ctx, &payment.CheckoutRequest{
		UserID:     user.ID,
		Subject:    user.Subject,
		Email:      user.Email,
		Credits:    credits,
		UnitAmount: s.cfg.Payment.UnitAmount,
		Currency:   currency,
		SuccessURL: s.cfg.Payment.SuccessURL,
		CancelURL:  s.cfg.Payment.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	err = s.txRepo.CreateIfAbsent(ctx, &model.Transaction{
		UserID:    user.ID,
		Amount:    float64(s.cfg.Payment.UnitAmount*int64(credits)) / 100,
		Currency:  strings.ToUpper(currency),
		Credits:   credits,
		SessionID: session.ID,
		Status:    model.TransactionPending,
	})
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

// HandleWebhook verifies and applies one processor notification. Unknown
// event types are accepted and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		if errors.Is(err, payment.ErrNotConfigured) {
			return ErrPaymentNotConfigured
		}
		return err
	}
	if evt.SessionID == "" {
		return nil
	}

	entry := s.log.WithFields(logrus.Fields{
		"event":      evt.Type,
		"session_id": evt.SessionID,
	})

	switch evt.Type {
	case payment.EventCheckoutCompleted:
		return s.complete(ctx, evt, entry)
	case payment.EventCheckoutExpired:
		changed, err := s.txRepo.Transition(ctx, evt.SessionID, model.TransactionCanceled, model.TransactionPending)
		if err != nil {
			return err
		}
		entry.WithField("changed", changed).Info("checkout session expired")
	case payment.EventPaymentFailed:
		changed, err := s.txRepo.Transition(ctx, evt.SessionID, model.TransactionFailed, model.TransactionPending)
		if err != nil {
			return err
		}
		entry.WithField("changed", changed).Info("checkout payment failed")
	default:
		entry.Debug("ignoring payment event")
	}
	return nil
}

func (s *PaymentService) complete(ctx context.Context, evt *payment.Event, entry *logrus.Entry) error {
	record := &model.Transaction{
		SessionID: evt.SessionID,
		Amount:    float64(evt.AmountTotal) / 100,
		Currency:  strings.ToUpper(evt.Currency),
	}

	existing, err := s.txRepo.GetBySessionID(ctx, evt.SessionID)
	switch {
	case err == nil:
		record.UserID = existing.UserID
		record.Credits = existing.Credits
		if record.Currency == "" {
			record.Currency = existing.Currency
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		userID, err := s.resolveUser(ctx, evt)
		if err != nil {
			return err
		}
		record.UserID = userID
		record.Credits = metaInt(evt.Metadata, payment.MetaCredits, s.cfg.Payment.DefaultCredits)
	default:
		return err
	}
	if record.Currency == "" {
		record.Currency = strings.ToUpper(s.cfg.Payment.Currency)
	}

	credited, err := s.txRepo.CompleteAndCredit(ctx, record)
	if err != nil {
		return err
	}
	entry.WithFields(logrus.Fields{
		"user_id":  record.UserID,
		"credits":  record.Credits,
		"credited": credited,
	}).Info("checkout session completed")
	return nil
}

// resolveUser finds the buyer of a session that was never recorded at
// checkout, by internal id first and identity subject second
func (s *PaymentService) resolveUser(ctx context.Context, evt *payment.Event) (int64, error) {
	if id := metaInt(evt.Metadata, payment.MetaUserID, 0); id > 0 {
		if _, err := s.userRepo.GetByID(ctx, int64(id)); err == nil {
			return int64(id), nil
		}
	}
	if subject := evt.Metadata[payment.MetaSubject]; subject != "" {
		return s.users.Resolve(ctx, subject, evt.Email)
	}
	return 0, ErrUserNotFound
}

// Cancel marks the caller's pending session canceled. Sessions already in a
// terminal state are returned unchanged.
func (s *PaymentService) Cancel(ctx context.Context, userID int64, sessionID string) (*dto.TransactionItem, error) {
	if sessionID == "" {
		return nil, ErrInvalidParameters
	}

	if _, err := s.txRepo.TransitionForUser(ctx, sessionID, userID, model.TransactionCanceled, model.TransactionPending); err != nil {
		return nil, err
	}

	tx, err := s.txRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if tx.UserID != userID {
		return nil, ErrTransactionNotFound
	}
	return buildTransactionItem(tx), nil
}

func metaInt(meta map[string]string, key string, fallback int) int {
	v, err := strconv.Atoi(meta[key])
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
