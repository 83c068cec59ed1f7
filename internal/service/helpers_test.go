package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/pkg/backend"
	"github.com/qs3c/bible_search_server/internal/pkg/pubsub"
	"github.com/qs3c/bible_search_server/internal/pkg/sse"
)

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{
			Currency:       "usd",
			UnitAmount:     50,
			DefaultCredits: 10,
			SuccessURL:     "http://localhost/success",
			CancelURL:      "http://localhost/cancel",
		},
		Media: config.MediaConfig{
			ResultCount:     3,
			CacheTTLDays:    7,
			RedisTTLMinutes: 60,
		},
		Credits: config.CreditsConfig{Initial: 5, SearchCost: 1},
		Limits: config.LimitsConfig{
			MediaPerDay:        50,
			GeneralPerDay:      200,
			UsageRetentionDays: 30,
		},
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// instantReplayer replays without pauses
func instantReplayer() *sse.Replayer {
	r := sse.NewReplayer()
	r.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*pubsub.HistoryEvent
}

func (p *recordingPublisher) PublishHistory(_ context.Context, evt *pubsub.HistoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Events() []*pubsub.HistoryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*pubsub.HistoryEvent(nil), p.events...)
}

// fakeBackend serves a fixed event stream and counts calls
type fakeBackend struct {
	server *httptest.Server
	calls  int32
	body   atomic.Value // string
}

func newFakeBackend(t *testing.T, body string) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{}
	fb.body.Store(body)
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fb.calls, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, fb.body.Load().(string))
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) Client() *backend.Client {
	return backend.NewClientWithHTTP(fb.server.URL, fb.server.Client())
}

func (fb *fakeBackend) Calls() int {
	return int(atomic.LoadInt32(&fb.calls))
}

func (fb *fakeBackend) SetBody(body string) {
	fb.body.Store(body)
}

// streamBody frames a results event followed by one token event per token
func streamBody(bible string, tokens ...string) string {
	out := string(sse.Encode(sse.EventResults, []byte(`{"bible_results":`+bible+`,"commentary_results":[]}`)))
	for _, tok := range tokens {
		out += string(sse.Encode(sse.EventToken, []byte(`{"token":"`+tok+`"}`)))
	}
	return out
}

func collectEvents(data []byte) []sse.Event {
	var events []sse.Event
	p := sse.NewParser(func(e sse.Event) { events = append(events, e) })
	p.Feed(data)
	p.Close()
	return events
}

func eventNames(events []sse.Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}
