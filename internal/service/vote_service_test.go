package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/repository"
	"github.com/qs3c/bible_search_server/internal/testutil"
)

func setupVoteService(t *testing.T) (*VoteService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	return NewVoteService(repository.NewSearchRepository(db), repository.NewUserSearchRepository(db)), db
}

func TestVoteService_VoteByHistoryID(t *testing.T) {
	service, db := setupVoteService(t)
	ctx := context.Background()

	user := testutil.TestUser(t, db)
	search := testutil.TestCanonicalSearch(t, db)
	link := testutil.TestUserSearch(t, db, user.ID, search.ID)

	resp, err := service.Vote(ctx, user.ID, &dto.VoteRequest{HistoryID: link.ID, VoteType: VoteUp})
	require.NoError(t, err)
	assert.Equal(t, link.ID, resp.HistoryID)
	assert.True(t, resp.ThumbsUp)
	assert.False(t, resp.ThumbsDown)
	assert.Equal(t, int64(1), resp.UpVotes)

	// a second vote overwrites instead of toggling
	resp, err = service.Vote(ctx, user.ID, &dto.VoteRequest{HistoryID: link.ID, VoteType: VoteDown})
	require.NoError(t, err)
	assert.False(t, resp.ThumbsUp)
	assert.True(t, resp.ThumbsDown)
	assert.Equal(t, int64(0), resp.UpVotes)
	assert.Equal(t, int64(1), resp.DownVotes)

	resp, err = service.Vote(ctx, user.ID, &dto.VoteRequest{HistoryID: link.ID, VoteType: VoteDown})
	require.NoError(t, err)
	assert.True(t, resp.ThumbsDown)
	assert.Equal(t, int64(1), resp.DownVotes)

	var stored model.CanonicalSearch
	require.NoError(t, db.First(&stored, search.ID).Error)
	assert.Equal(t, search.UpdatedAt.Unix(), stored.UpdatedAt.Unix())
}

func TestVoteService_VoteOnOthersHistory(t *testing.T) {
	service, db := setupVoteService(t)

	owner := testutil.TestUser(t, db)
	intruder := testutil.TestUser(t, db)
	search := testutil.TestCanonicalSearch(t, db)
	link := testutil.TestUserSearch(t, db, owner.ID, search.ID)

	_, err := service.Vote(context.Background(), intruder.ID, &dto.VoteRequest{HistoryID: link.ID, VoteType: VoteUp})
	assert.ErrorIs(t, err, ErrHistoryNotFound)
}

func TestVoteService_VoteBySearchID_CreatesOneAssociation(t *testing.T) {
	service, db := setupVoteService(t)
	ctx := context.Background()

	user := testutil.TestUser(t, db)
	search := testutil.TestCanonicalSearch(t, db)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Vote(ctx, user.ID, &dto.VoteRequest{SearchID: search.ID, VoteType: VoteUp})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	var count int64
	db.Model(&model.UserSearch{}).Where("user_id = ? AND search_id = ?", user.ID, search.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	resp, err := service.Vote(ctx, user.ID, &dto.VoteRequest{SearchID: search.ID, VoteType: VoteDown})
	require.NoError(t, err)
	assert.True(t, resp.ThumbsDown)
	db.Model(&model.UserSearch{}).Where("user_id = ? AND search_id = ?", user.ID, search.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestVoteService_VoteBySearchID_ReusesSearchHistory(t *testing.T) {
	service, db := setupVoteService(t)

	user := testutil.TestUser(t, db)
	search := testutil.TestCanonicalSearch(t, db)
	link := testutil.TestUserSearch(t, db, user.ID, search.ID)

	resp, err := service.Vote(context.Background(), user.ID, &dto.VoteRequest{SearchID: search.ID, VoteType: VoteUp})
	require.NoError(t, err)
	assert.Equal(t, link.ID, resp.HistoryID)
}

func TestVoteService_Aggregate(t *testing.T) {
	service, db := setupVoteService(t)
	ctx := context.Background()

	search := testutil.TestCanonicalSearch(t, db)
	for i := 0; i < 2; i++ {
		u := testutil.TestUser(t, db)
		testutil.TestUserSearch(t, db, u.ID, search.ID, testutil.WithVote(true))
	}
	voter := testutil.TestUser(t, db)

	resp, err := service.Vote(ctx, voter.ID, &dto.VoteRequest{SearchID: search.ID, VoteType: VoteDown})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.UpVotes)
	assert.Equal(t, int64(1), resp.DownVotes)
}

func TestVoteService_InvalidRequests(t *testing.T) {
	service, db := setupVoteService(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db)

	_, err := service.Vote(ctx, user.ID, &dto.VoteRequest{VoteType: VoteUp})
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = service.Vote(ctx, user.ID, &dto.VoteRequest{SearchID: 1, VoteType: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = service.Vote(ctx, 0, &dto.VoteRequest{SearchID: 1, VoteType: VoteUp})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = service.Vote(ctx, user.ID, &dto.VoteRequest{SearchID: 99999, VoteType: VoteUp})
	assert.ErrorIs(t, err, ErrSearchNotFound)
}
