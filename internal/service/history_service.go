package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/pubsub"
	"github.com/qs3c/bible_search_server/internal/pkg/searchkey"
	"github.com/qs3c/bible_search_server/internal/pkg/sse"
	"github.com/qs3c/bible_search_server/internal/repository"
)

const maxHistoryPage = 100

// HistoryService manages a user's associations with canonical searches
type HistoryService struct {
	searchRepo     *repository.SearchRepository
	userSearchRepo *repository.UserSearchRepository
	publisher      HistoryPublisher
	log            *logrus.Logger
}

func NewHistoryService(
	searchRepo *repository.SearchRepository,
	userSearchRepo *repository.UserSearchRepository,
	publisher HistoryPublisher,
	log *logrus.Logger,
) *HistoryService {
	return &HistoryService{
		searchRepo:     searchRepo,
		userSearchRepo: userSearchRepo,
		publisher:      publisher,
		log:            log,
	}
}

// List returns a page of the user's history, newest first
func (s *HistoryService) List(ctx context.Context, userID int64, limit, offset int) ([]*dto.HistoryItem, int64, error) {
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	if offset < 0 {
		offset = 0
	}

	links, total, err := s.userSearchRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.HistoryItem, 0, len(links))
	for _, link := range links {
		if link.Search == nil {
			continue
		}
		items = append(items, buildHistoryItem(link))
	}
	return items, total, nil
}

// Append adds a history entry. With a search id the user is linked to that
// existing search; otherwise the full entry is stored as a client row, which
// the answer cache never serves.
func (s *HistoryService) Append(ctx context.Context, userID int64, req *dto.AppendHistoryRequest) (*dto.HistoryItem, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	if req.SearchID != 0 {
		return s.link(ctx, userID, req.SearchID)
	}

	query := searchkey.NormalizeQuery(req.Query)
	if query == "" || utf8.RuneCountInString(query) > searchkey.MaxQueryLength {
		return nil, ErrInvalidParameters
	}
	bible, err := normalizeList(req.BibleResults)
	if err != nil {
		return nil, ErrInvalidParameters
	}
	commentary, err := normalizeList(req.CommentaryResults)
	if err != nil {
		return nil, ErrInvalidParameters
	}
	if req.Response == "" && sse.IsEmptyList(bible) && sse.IsEmptyList(commentary) {
		return nil, ErrInvalidParameters
	}

	lang, opts := searchkey.Normalize(req.Settings)
	record := &model.CanonicalSearch{
		Query:             query,
		Language:          lang,
		Options:           datatypes.JSON(opts.JSON()),
		OptionsKey:        opts.Key(),
		Response:          req.Response,
		ResponseHash:      searchkey.ResponseHash(req.Response),
		BibleResults:      datatypes.JSON(bible),
		CommentaryResults: datatypes.JSON(commentary),
		Source:            model.SearchSourceClient,
	}

	saved, link, err := s.searchRepo.SaveWithAssociation(ctx, record, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	link.Search = saved

	s.announce(ctx, &pubsub.HistoryEvent{
		Type:      pubsub.TypeHistoryCreated,
		UserID:    userID,
		HistoryID: link.ID,
		SearchID:  saved.ID,
		Query:     saved.Query,
	})
	return buildHistoryItem(link), nil
}

func (s *HistoryService) link(ctx context.Context, userID, searchID int64) (*dto.HistoryItem, error) {
	search, err := s.searchRepo.GetByID(ctx, searchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSearchNotFound
		}
		return nil, err
	}

	link := &model.UserSearch{UserID: userID, SearchID: search.ID}
	if err := s.userSearchRepo.Create(ctx, link); err != nil {
		return nil, err
	}
	link.Search = search

	s.announce(ctx, &pubsub.HistoryEvent{
		Type:      pubsub.TypeHistoryCreated,
		UserID:    userID,
		HistoryID: link.ID,
		SearchID:  search.ID,
		Query:     search.Query,
	})
	return buildHistoryItem(link), nil
}

// Delete removes one of the user's entries. The canonical search stays.
func (s *HistoryService) Delete(ctx context.Context, userID, historyID int64) error {
	deleted, err := s.userSearchRepo.Delete(ctx, historyID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrHistoryNotFound
	}

	s.announce(ctx, &pubsub.HistoryEvent{
		Type:      pubsub.TypeHistoryDeleted,
		UserID:    userID,
		HistoryID: historyID,
	})
	return nil
}

func (s *HistoryService) announce(ctx context.Context, evt *pubsub.HistoryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishHistory(ctx, evt); err != nil {
		s.log.WithError(err).WithField("user_id", evt.UserID).Warn("failed to publish history event")
	}
}

// normalizeList accepts an absent list or a JSON array
func normalizeList(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("[]"), nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return raw, nil
}

func buildHistoryItem(link *model.UserSearch) *dto.HistoryItem {
	search := link.Search
	lang := search.Language
	opts, _ := searchkey.Parse(search.Options)

	settings, _ := json.Marshal(opts.Settings(lang))

	return &dto.HistoryItem{
		ID:                link.ID,
		SearchID:          search.ID,
		Query:             search.Query,
		Language:          lang,
		Response:          search.Response,
		BibleResults:      listOrEmpty(search.BibleResults),
		CommentaryResults: listOrEmpty(search.CommentaryResults),
		Settings:          settings,
		ThumbsUp:          link.ThumbsUp,
		ThumbsDown:        link.ThumbsDown,
		CreatedAt:         link.CreatedAt,
	}
}
