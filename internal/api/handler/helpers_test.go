package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/pkg/pubsub"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/pkg/sse"
	"github.com/qs3c/bible_search_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext local test state
type testContext struct {
	DB *gorm.DB
}

func setupTestContext(t *testing.T) *testContext {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return &testContext{DB: db}
}

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{
			Currency:       "usd",
			UnitAmount:     50,
			DefaultCredits: 10,
			SuccessURL:     "http://localhost/success",
			CancelURL:      "http://localhost/cancel",
		},
		Media:   config.MediaConfig{ResultCount: 3, CacheTTLDays: 7, RedisTTLMinutes: 60},
		Credits: config.CreditsConfig{Initial: 5, SearchCost: 1},
		Limits:  config.LimitsConfig{MediaPerDay: 50, GeneralPerDay: 200, UsageRetentionDays: 30},
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// mockAuth stands in for the auth middleware
func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func creditsOf(t *testing.T, db *gorm.DB, userID int64) int {
	t.Helper()
	var user model.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.Credits
}

// fakeBackend serves a fixed event stream and counts calls
type fakeBackend struct {
	server *httptest.Server
	calls  int32
}

func newFakeBackend(t *testing.T, body string) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fb.calls, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) Calls() int {
	return int(atomic.LoadInt32(&fb.calls))
}

func streamBody(bible string, tokens ...string) string {
	out := string(sse.Encode(sse.EventResults, []byte(`{"bible_results":`+bible+`,"commentary_results":[]}`)))
	for _, tok := range tokens {
		out += string(sse.Encode(sse.EventToken, []byte(`{"token":"`+tok+`"}`)))
	}
	return out
}

func instantReplayer() *sse.Replayer {
	r := sse.NewReplayer()
	r.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r
}

func eventNames(data []byte) []string {
	var names []string
	p := sse.NewParser(func(e sse.Event) { names = append(names, e.Name) })
	p.Feed(data)
	p.Close()
	return names
}

type nopPublisher struct{}

func (nopPublisher) PublishHistory(context.Context, *pubsub.HistoryEvent) error { return nil }
