package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/model/dto"
	"github.com/qs3c/bible_search_server/internal/pkg/backend"
	"github.com/qs3c/bible_search_server/internal/pkg/pubsub"
	"github.com/qs3c/bible_search_server/internal/pkg/searchkey"
	"github.com/qs3c/bible_search_server/internal/pkg/sse"
	"github.com/qs3c/bible_search_server/internal/repository"
	"github.com/qs3c/bible_search_server/internal/testutil"
)

var loveSettings = map[string]interface{}{
	"language":     "en",
	"oldTestament": true,
	"newTestament": true,
	"commentary":   false,
	"insights":     true,
}

type searchFixture struct {
	db      *gorm.DB
	svc     *SearchService
	backend *fakeBackend
	pub     *recordingPublisher
	cfg     *config.Config
}

func setupSearchService(t *testing.T, body string) *searchFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := testConfig()
	log := testLogger()
	fb := newFakeBackend(t, body)
	pub := &recordingPublisher{}

	credits := NewCreditService(repository.NewUserRepository(db), cfg)
	svc := NewSearchService(repository.NewSearchRepository(db), credits, fb.Client(), instantReplayer(), pub, cfg, log)

	return &searchFixture{db: db, svc: svc, backend: fb, pub: pub, cfg: cfg}
}

func (f *searchFixture) run(t *testing.T, userID int64, query string, settings map[string]interface{}) (*SearchOutcome, []byte, error) {
	t.Helper()

	plan, err := f.svc.Prepare(context.Background(), &SearchInput{UserID: userID, Query: query, Settings: settings})
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	out, err := f.svc.Stream(context.Background(), plan, &buf)
	return out, buf.Bytes(), err
}

func (f *searchFixture) credits(t *testing.T, userID int64) int {
	t.Helper()
	var user model.User
	require.NoError(t, f.db.First(&user, userID).Error)
	return user.Credits
}

func (f *searchFixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func TestSearchService_MissThenHit(t *testing.T) {
	f := setupSearchService(t, streamBody(`["1 Corinthians 13:4"]`, "Love is ", "patient."))
	u := testutil.TestUser(t, f.db)
	v := testutil.TestUser(t, f.db)

	out, raw, err := f.run(t, u.ID, "What is love?", loveSettings)
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.True(t, out.Persisted)
	assert.True(t, out.Billed)
	assert.Equal(t, 9, f.credits(t, u.ID))
	assert.Equal(t, 1, f.backend.Calls())
	assert.Equal(t, []string{sse.EventResults, sse.EventToken, sse.EventToken}, eventNames(collectEvents(raw)))

	assert.Equal(t, int64(1), f.count(t, &model.CanonicalSearch{}))
	assert.Equal(t, int64(1), f.count(t, &model.UserSearch{}))

	var stored model.CanonicalSearch
	require.NoError(t, f.db.First(&stored).Error)
	assert.Equal(t, "Love is patient.", stored.Response)
	assert.JSONEq(t, `["1 Corinthians 13:4"]`, string(stored.BibleResults))

	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, pubsub.TypeHistoryCreated, events[0].Type)
	assert.Equal(t, out.HistoryID, events[0].HistoryID)
	assert.Equal(t, stored.ID, events[0].SearchID)

	out, raw, err = f.run(t, v.ID, "What is love?", loveSettings)
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.True(t, out.Billed)
	assert.Equal(t, stored.ID, out.SearchID)
	assert.Equal(t, 1, f.backend.Calls())
	assert.Equal(t, 9, f.credits(t, v.ID))

	replayed := collectEvents(raw)
	require.Len(t, replayed, 5)
	assert.Equal(t, sse.EventResults, replayed[0].Name)
	assert.Contains(t, replayed[0].Data, `"search_id":`)

	var tokens []string
	for _, e := range replayed[1:] {
		assert.Equal(t, sse.EventToken, e.Name)
		tokens = append(tokens, e.Data)
	}
	assert.Equal(t, []string{`{"token":"Love "}`, `{"token":"is pa"}`, `{"token":"tient"}`, `{"token":"."}`}, tokens)

	// a hit never adds history on its own
	assert.Equal(t, int64(1), f.count(t, &model.UserSearch{}))
}

func TestSearchService_ClientHistoryIsNeverServedFromCache(t *testing.T) {
	f := setupSearchService(t, streamBody(`["1 Corinthians 13:4"]`, "Love is ", "patient."))
	writer := testutil.TestUser(t, f.db)
	reader := testutil.TestUser(t, f.db)

	history := NewHistoryService(repository.NewSearchRepository(f.db), repository.NewUserSearchRepository(f.db), f.pub, testLogger())
	_, err := history.Append(context.Background(), writer.ID, &dto.AppendHistoryRequest{
		Query:        "What is love?",
		Response:     "Something else entirely.",
		BibleResults: json.RawMessage(`["Nowhere 1:1"]`),
		Settings:     loveSettings,
	})
	require.NoError(t, err)

	out, raw, err := f.run(t, reader.ID, "What is love?", loveSettings)
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, 1, f.backend.Calls())
	assert.Equal(t, 9, f.credits(t, reader.ID))
	assert.NotContains(t, string(raw), "Nowhere 1:1")
	assert.NotContains(t, string(raw), "Something")

	// the live answer is stored beside the client row, not merged into it
	var sources []string
	require.NoError(t, f.db.Model(&model.CanonicalSearch{}).Order("id").Pluck("source", &sources).Error)
	assert.Equal(t, []string{model.SearchSourceClient, model.SearchSourceBackend}, sources)

	// and from now on it is the one replayed
	out, _, err = f.run(t, writer.ID, "What is love?", loveSettings)
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.Equal(t, 1, f.backend.Calls())
}

func TestSearchService_SameUserRepeatedSearchBillsEachTime(t *testing.T) {
	f := setupSearchService(t, streamBody(`["John 3:16"]`, "For God so loved"))
	u := testutil.TestUser(t, f.db)

	for i := 0; i < 3; i++ {
		_, _, err := f.run(t, u.ID, "What is love?", loveSettings)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.backend.Calls())
	assert.Equal(t, 7, f.credits(t, u.ID))
}

func TestSearchService_SubsetContainment(t *testing.T) {
	f := setupSearchService(t, streamBody(`["Psalm 23:1"]`, "The Lord is my shepherd"))
	u := testutil.TestUser(t, f.db)

	testutil.TestCanonicalSearch(t, f.db,
		testutil.WithQuery("shepherd"),
		testutil.WithOptions(searchkey.Options{OldTestament: true, NewTestament: true, Insights: true}),
	)

	out, _, err := f.run(t, u.ID, "shepherd", map[string]interface{}{"newTestament": true, "insights": true})
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.Equal(t, 0, f.backend.Calls())

	out, _, err = f.run(t, u.ID, "shepherd", map[string]interface{}{"commentary": true, "insights": true})
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, 1, f.backend.Calls())
}

func TestSearchService_LanguageAndCaseAreDistinctKeys(t *testing.T) {
	f := setupSearchService(t, streamBody(`["Romans 8:28"]`, "All things"))
	u := testutil.TestUser(t, f.db)
	testutil.TestCanonicalSearch(t, f.db)

	pl := map[string]interface{}{"language": "pl", "insights": true}
	out, _, err := f.run(t, u.ID, "What is love?", pl)
	require.NoError(t, err)
	assert.False(t, out.CacheHit)

	out, _, err = f.run(t, u.ID, "what is love?", loveSettings)
	require.NoError(t, err)
	assert.False(t, out.CacheHit)

	out, _, err = f.run(t, u.ID, "  What is love?  ", loveSettings)
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
}

func TestSearchService_NetDownvotedRowIsNotReused(t *testing.T) {
	f := setupSearchService(t, streamBody(`["1 John 4:8"]`, "God is love."))
	u := testutil.TestUser(t, f.db)
	other := testutil.TestUser(t, f.db)

	bad := testutil.TestCanonicalSearch(t, f.db)
	testutil.TestUserSearch(t, f.db, other.ID, bad.ID, testutil.WithVote(false))

	out, _, err := f.run(t, u.ID, "What is love?", loveSettings)
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, 1, f.backend.Calls())
	assert.NotEqual(t, bad.ID, out.SearchID)
	assert.Equal(t, int64(2), f.count(t, &model.CanonicalSearch{}))
}

func TestSearchService_EmptyResultsAreNotBilledOrStored(t *testing.T) {
	f := setupSearchService(t, streamBody(`[]`))
	u := testutil.TestUser(t, f.db)

	out, _, err := f.run(t, u.ID, "nothing here", loveSettings)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.False(t, out.Persisted)
	assert.False(t, out.Billed)
	assert.Equal(t, 10, f.credits(t, u.ID))
	assert.Equal(t, int64(0), f.count(t, &model.CanonicalSearch{}))
}

func TestSearchService_InsightsWithoutTextAreNotStored(t *testing.T) {
	f := setupSearchService(t, streamBody(`["Genesis 1:1"]`))
	u := testutil.TestUser(t, f.db)

	out, _, err := f.run(t, u.ID, "In the beginning", loveSettings)
	require.NoError(t, err)
	assert.False(t, out.Persisted)
	// matches were delivered, so the insight request is still paid for
	assert.True(t, out.Billed)
	assert.Equal(t, 9, f.credits(t, u.ID))
}

func TestSearchService_ErrorEventSkipsPersistAndBilling(t *testing.T) {
	body := streamBody(`["Luke 15:11"]`, "The prodigal") +
		string(sse.Encode(sse.EventError, []byte(`{"error":"model overloaded"}`)))
	f := setupSearchService(t, body)
	u := testutil.TestUser(t, f.db)

	out, raw, err := f.run(t, u.ID, "prodigal son", loveSettings)
	require.NoError(t, err)
	assert.False(t, out.Persisted)
	assert.False(t, out.Billed)
	assert.Equal(t, 10, f.credits(t, u.ID))
	assert.Equal(t, int64(0), f.count(t, &model.CanonicalSearch{}))

	// what the client already got stays in the stream
	assert.Equal(t, []string{sse.EventResults, sse.EventToken, sse.EventError}, eventNames(collectEvents(raw)))
}

type brokenBackend struct {
	prefix string
	err    error
	cancel context.CancelFunc
}

func (b *brokenBackend) Search(ctx context.Context, req *backend.SearchRequest) (io.ReadCloser, error) {
	return io.NopCloser(&brokenReader{data: []byte(b.prefix), err: b.err, cancel: b.cancel}), nil
}

type brokenReader struct {
	data   []byte
	err    error
	cancel context.CancelFunc
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	if r.cancel != nil {
		r.cancel()
	}
	return 0, r.err
}

func setupBrokenSearch(t *testing.T, b *brokenBackend) (*SearchService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := testConfig()
	log := testLogger()
	credits := NewCreditService(repository.NewUserRepository(db), cfg)
	return NewSearchService(repository.NewSearchRepository(db), credits, b, instantReplayer(), nil, cfg, log), db
}

func TestSearchService_InterruptedStreamEndsWithErrorEvent(t *testing.T) {
	// the stream breaks in the middle of a token event
	prefix := streamBody(`["Mark 4:39"]`) + "event: token\ndata: {\"tok"
	svc, db := setupBrokenSearch(t, &brokenBackend{prefix: prefix, err: errors.New("connection reset")})
	u := testutil.TestUser(t, db)

	plan, err := svc.Prepare(context.Background(), &SearchInput{UserID: u.ID, Query: "storm", Settings: loveSettings})
	require.NoError(t, err)

	var buf bytes.Buffer
	out, err := svc.Stream(context.Background(), plan, &buf)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.False(t, out.Completed)

	events := collectEvents(buf.Bytes())
	require.NotEmpty(t, events)
	assert.Equal(t, sse.EventResults, events[0].Name)
	assert.Equal(t, sse.EventError, events[len(events)-1].Name)

	var user model.User
	require.NoError(t, db.First(&user, u.ID).Error)
	assert.Equal(t, 10, user.Credits)
}

func TestSearchService_ClientDisconnectDiscardsPartialStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := &brokenBackend{prefix: streamBody(`["Mark 4:39"]`, "Peace, be"), err: context.Canceled, cancel: cancel}
	svc, db := setupBrokenSearch(t, b)
	u := testutil.TestUser(t, db)

	plan, err := svc.Prepare(ctx, &SearchInput{UserID: u.ID, Query: "storm", Settings: loveSettings})
	require.NoError(t, err)

	out, err := svc.Stream(ctx, plan, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.Persisted)
	assert.False(t, out.Billed)

	var n int64
	db.Model(&model.CanonicalSearch{}).Count(&n)
	assert.Equal(t, int64(0), n)
}

func TestSearchService_CreditCheckBeforeBackend(t *testing.T) {
	f := setupSearchService(t, streamBody(`["Matthew 5:3"]`, "Blessed"))
	broke := testutil.TestUser(t, f.db, testutil.WithCredits(0))

	_, _, err := f.run(t, broke.ID, "beatitudes", loveSettings)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, 0, f.backend.Calls())

	_, _, err = f.run(t, 99999, "beatitudes", loveSettings)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 0, f.backend.Calls())
}

func TestSearchService_AnonymousCaller(t *testing.T) {
	f := setupSearchService(t, streamBody(`["Matthew 5:3"]`))

	_, _, err := f.run(t, 0, "beatitudes", loveSettings)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, f.backend.Calls())

	out, _, err := f.run(t, 0, "beatitudes", map[string]interface{}{"newTestament": true})
	require.NoError(t, err)
	assert.True(t, out.Persisted)
	assert.False(t, out.Billed)
	assert.Zero(t, out.HistoryID)
	assert.Equal(t, int64(0), f.count(t, &model.UserSearch{}))
	assert.Empty(t, f.pub.Events())
}

func TestSearchService_ReplayWithoutInsightsSkipsText(t *testing.T) {
	f := setupSearchService(t, "")
	u := testutil.TestUser(t, f.db)
	testutil.TestCanonicalSearch(t, f.db)

	out, raw, err := f.run(t, u.ID, "What is love?", map[string]interface{}{"oldTestament": true})
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.False(t, out.Billed)
	assert.Equal(t, []string{sse.EventResults}, eventNames(collectEvents(raw)))
	assert.Equal(t, 10, f.credits(t, u.ID))
}

func TestSearchService_LiveAndReplayedShapesMatch(t *testing.T) {
	f := setupSearchService(t, streamBody(`["Micah 6:8"]`, "Do justly, ", "love mercy"))
	u := testutil.TestUser(t, f.db)

	_, live, err := f.run(t, u.ID, "what does God require", loveSettings)
	require.NoError(t, err)
	_, replayed, err := f.run(t, u.ID, "what does God require", loveSettings)
	require.NoError(t, err)

	shape := func(events []sse.Event) (int, int) {
		results, tokens := 0, 0
		for i, e := range events {
			switch e.Name {
			case sse.EventResults:
				assert.Equal(t, 0, i)
				results++
			case sse.EventToken:
				tokens++
			default:
				t.Fatalf("unexpected event %q", e.Name)
			}
		}
		return results, tokens
	}

	lr, lt := shape(collectEvents(live))
	rr, rt := shape(collectEvents(replayed))
	assert.Equal(t, 1, lr)
	assert.Equal(t, 1, rr)
	assert.Positive(t, lt)
	assert.Positive(t, rt)
}

func TestSearchService_ConcurrentIdenticalMissesShareOneRow(t *testing.T) {
	f := setupSearchService(t, streamBody(`["Psalm 46:10"]`, "Be still"))
	users := []*model.User{testutil.TestUser(t, f.db), testutil.TestUser(t, f.db)}

	// both miss before either has persisted
	plans := make([]*SearchPlan, len(users))
	for i, u := range users {
		plan, err := f.svc.Prepare(context.Background(), &SearchInput{UserID: u.ID, Query: "be still", Settings: loveSettings})
		require.NoError(t, err)
		require.Nil(t, plan.Hit)
		plans[i] = plan
	}

	var wg sync.WaitGroup
	for _, plan := range plans {
		wg.Add(1)
		go func(p *SearchPlan) {
			defer wg.Done()
			_, _ = f.svc.Stream(context.Background(), p, io.Discard)
		}(plan)
	}
	wg.Wait()

	assert.Equal(t, int64(1), f.count(t, &model.CanonicalSearch{}))
	assert.Equal(t, int64(2), f.count(t, &model.UserSearch{}))
}

func TestSearchService_InvalidQuery(t *testing.T) {
	f := setupSearchService(t, "")

	_, _, err := f.run(t, 0, "   ", nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, _, err = f.run(t, 0, strings.Repeat("a", searchkey.MaxQueryLength+1), nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestSearchService_BackendDown(t *testing.T) {
	f := setupSearchService(t, "")
	f.backend.server.Close()
	u := testutil.TestUser(t, f.db)

	_, _, err := f.run(t, u.ID, "anything", loveSettings)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, 10, f.credits(t, u.ID))
}
