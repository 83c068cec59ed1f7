package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/repository"
)

const (
	VoteUp   = "up"
	VoteDown = "down"
)

// VoteService records a user's feedback on a search. Votes live on the
// user's association; the shared canonical row is never touched.
type VoteService struct {
	searchRepo     *repository.SearchRepository
	userSearchRepo *repository.UserSearchRepository
}

func NewVoteService(searchRepo *repository.SearchRepository, userSearchRepo *repository.UserSearchRepository) *VoteService {
	return &VoteService{
		searchRepo:     searchRepo,
		userSearchRepo: userSearchRepo,
	}
}

// Vote applies req for userID. A known history id is updated directly;
// otherwise the association with the search is found or created first.
func (s *VoteService) Vote(ctx context.Context, userID int64, req *dto.VoteRequest) (*dto.VoteResponse, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	if req.VoteType != VoteUp && req.VoteType != VoteDown {
		return nil, ErrInvalidParameters
	}

	link, err := s.resolve(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	link.SetVote(req.VoteType == VoteUp)
	if err := s.userSearchRepo.UpdateVote(ctx, link); err != nil {
		return nil, err
	}

	up, down, err := s.searchRepo.CountVotes(ctx, link.SearchID)
	if err != nil {
		return nil, err
	}

	return &dto.VoteResponse{
		HistoryID:  link.ID,
		SearchID:   link.SearchID,
		ThumbsUp:   link.ThumbsUp,
		ThumbsDown: link.ThumbsDown,
		UpVotes:    up,
		DownVotes:  down,
	}, nil
}

func (s *VoteService) resolve(ctx context.Context, userID int64, req *dto.VoteRequest) (*model.UserSearch, error) {
	if req.HistoryID != 0 {
		link, err := s.userSearchRepo.GetForUser(ctx, req.HistoryID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrHistoryNotFound
			}
			return nil, err
		}
		return link, nil
	}

	if req.SearchID == 0 {
		return nil, ErrInvalidParameters
	}

	if _, err := s.searchRepo.GetByID(ctx, req.SearchID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSearchNotFound
		}
		return nil, err
	}

	link, err := s.userSearchRepo.LatestForUserAndSearch(ctx, userID, req.SearchID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.userSearchRepo.CreateLazy(ctx, userID, req.SearchID)
}
