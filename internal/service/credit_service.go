package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/repository"
)

// CreditService guards and moves credit balances. The balance check and the
// decrement are always one statement.
type CreditService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewCreditService(userRepo *repository.UserRepository, cfg *config.Config) *CreditService {
	return &CreditService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// CheckBalance returns the balance, failing when it cannot pay for one search
func (s *CreditService) CheckBalance(ctx context.Context, userID int64) (int, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	if user.Credits < s.searchCost() {
		return user.Credits, ErrInsufficientCredits
	}
	return user.Credits, nil
}

// Deduct subtracts amount when the balance covers it. ok is false, with a nil
// error, when it did not; callers decide whether that blocks anything.
func (s *CreditService) Deduct(ctx context.Context, userID int64, amount int) (balance int, ok bool, err error) {
	if amount <= 0 {
		amount = s.searchCost()
	}

	balance, ok, err = s.userRepo.DeductCredits(ctx, userID, amount)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, ErrUserNotFound
	}
	return balance, ok, err
}

// Add credits userID unconditionally
func (s *CreditService) Add(ctx context.Context, userID int64, amount int) error {
	if amount <= 0 {
		return ErrInvalidParameters
	}

	err := s.userRepo.AddCredits(ctx, userID, amount)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *CreditService) searchCost() int {
	if s.cfg.Credits.SearchCost > 0 {
		return s.cfg.Credits.SearchCost
	}
	return 1
}
