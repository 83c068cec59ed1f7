package service

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/repository"
)

// DefaultSettings are the search toggles a user starts with
func DefaultSettings() map[string]interface{} {
	return map[string]interface{}{
		"language":     "en",
		"oldTestament": true,
		"newTestament": true,
		"commentary":   false,
		"insights":     true,
		"media":        false,
	}
}

type UserService struct {
	userRepo *repository.UserRepository
	txRepo   *repository.TransactionRepository
	cfg      *config.Config
}

func NewUserService(userRepo *repository.UserRepository, txRepo *repository.TransactionRepository, cfg *config.Config) *UserService {
	return &UserService{
		userRepo: userRepo,
		txRepo:   txRepo,
		cfg:      cfg,
	}
}

// GetOrCreate returns the user for a verified identity subject, creating it
// with the starting balance on first sight
func (s *UserService) GetOrCreate(ctx context.Context, subject, email string) (*model.User, error) {
	if subject == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.GetBySubject(ctx, subject)
	if err == nil {
		if user.Email == "" && email != "" {
			if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"email": email}); err != nil {
				return nil, err
			}
			user.Email = email
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.userRepo.FirstOrCreateBySubject(ctx, &model.User{
		Subject:  subject,
		Email:    email,
		Credits:  s.cfg.Credits.Initial,
		Settings: datatypes.JSON(`{}`),
	})
}

// Resolve maps a verified subject to the internal user id
func (s *UserService) Resolve(ctx context.Context, subject, email string) (int64, error) {
	user, err := s.GetOrCreate(ctx, subject, email)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Me returns the profile with the purchase history
func (s *UserService) Me(ctx context.Context, userID int64) (*dto.MeResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := s.txRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TransactionItem, len(txs))
	for i, tx := range txs {
		items[i] = buildTransactionItem(tx)
	}

	return &dto.MeResponse{
		User:         buildUserInfo(user),
		Transactions: items,
	}, nil
}

// Sync makes sure a row exists for the identity and returns it
func (s *UserService) Sync(ctx context.Context, subject, email string) (*dto.UserInfo, error) {
	user, err := s.GetOrCreate(ctx, subject, email)
	if err != nil {
		return nil, err
	}
	return buildUserInfo(user), nil
}

// GetSettings returns stored settings layered over the defaults
func (s *UserService) GetSettings(ctx context.Context, userID int64) (map[string]interface{}, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mergeSettings(DefaultSettings(), user.Settings), nil
}

// UpdateSettings merges update into the stored settings and returns the
// effective result
func (s *UserService) UpdateSettings(ctx context.Context, userID int64, update map[string]interface{}) (map[string]interface{}, error) {
	if len(update) == 0 {
		return nil, ErrInvalidParameters
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored := mergeSettings(map[string]interface{}{}, user.Settings)
	for k, v := range update {
		stored[k] = v
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, ErrInvalidParameters
	}
	if err := s.userRepo.UpdateSettings(ctx, userID, datatypes.JSON(data)); err != nil {
		return nil, err
	}

	return mergeSettings(DefaultSettings(), data), nil
}

func (s *UserService) getUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// mergeSettings copies the keys of blob over base. An unreadable blob
// leaves base untouched.
func mergeSettings(base map[string]interface{}, blob []byte) map[string]interface{} {
	var stored map[string]interface{}
	if len(blob) > 0 && json.Unmarshal(blob, &stored) == nil {
		for k, v := range stored {
			base[k] = v
		}
	}
	return base
}

func buildUserInfo(user *model.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		Credits:   user.Credits,
		Settings:  mergeSettings(DefaultSettings(), user.Settings),
		CreatedAt: user.CreatedAt,
	}
}

func buildTransactionItem(tx *model.Transaction) *dto.TransactionItem {
	return &dto.TransactionItem{
		ID:        tx.ID,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Credits:   tx.Credits,
		SessionID: tx.SessionID,
		Status:    tx.Status,
		CreatedAt: tx.CreatedAt,
	}
}
