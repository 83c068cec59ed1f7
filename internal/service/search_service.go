package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/pkg/backend"
	"github.com/qs3c/bible_search_server/internal/pkg/metrics"
	"github.com/qs3c/bible_search_server/internal/pkg/pubsub"
	"github.com/qs3c/bible_search_server/internal/pkg/searchkey"
	"github.com/qs3c/bible_search_server/internal/pkg/sse"
	"github.com/qs3c/bible_search_server/internal/repository"
)

// candidateLimit bounds how many recent rows are checked for containment
const candidateLimit = 20

// SearchBackend starts a live streaming search
type SearchBackend interface {
	Search(ctx context.Context, req *backend.SearchRequest) (io.ReadCloser, error)
}

// StreamReplayer re-emits a stored answer as a stream
type StreamReplayer interface {
	Replay(ctx context.Context, w *sse.Writer, results sse.ResultsPayload, text string) error
}

// HistoryPublisher announces history changes to the owner's open sessions
type HistoryPublisher interface {
	PublishHistory(ctx context.Context, evt *pubsub.HistoryEvent) error
}

// SearchInput is one search submission. UserID is zero for anonymous callers.
type SearchInput struct {
	UserID   int64
	Query    string
	Settings map[string]interface{}
}

// SearchPlan is a search that passed every pre-flight check. Exactly one of
// Hit and body is set.
type SearchPlan struct {
	UserID   int64
	Query    string
	Language string
	Options  searchkey.Options
	Hit      *model.CanonicalSearch

	body io.ReadCloser
}

// Close releases the live stream when the plan is abandoned before Stream
func (p *SearchPlan) Close() error {
	if p.body != nil {
		return p.body.Close()
	}
	return nil
}

// SearchOutcome reports what a finished stream did
type SearchOutcome struct {
	CacheHit  bool
	Completed bool
	Persisted bool
	SearchID  int64
	HistoryID int64
	Billed    bool
	Balance   int
}

type SearchService struct {
	searchRepo *repository.SearchRepository
	credits    *CreditService
	backend    SearchBackend
	replayer   StreamReplayer
	publisher  HistoryPublisher
	cfg        *config.Config
	log        *logrus.Logger
}

func NewSearchService(
	searchRepo *repository.SearchRepository,
	credits *CreditService,
	backend SearchBackend,
	replayer StreamReplayer,
	publisher HistoryPublisher,
	cfg *config.Config,
	log *logrus.Logger,
) *SearchService {
	return &SearchService{
		searchRepo: searchRepo,
		credits:    credits,
		backend:    backend,
		replayer:   replayer,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
	}
}

// Prepare runs everything that may still refuse the search: validation, the
// credit check and the cache lookup. On a miss it opens
// the backend stream. Nothing costly happens before the credit check passes.
func (s *SearchService) Prepare(ctx context.Context, in *SearchInput) (*SearchPlan, error) {
	query := searchkey.NormalizeQuery(in.Query)
	if query == "" || utf8.RuneCountInString(query) > searchkey.MaxQueryLength {
		return nil, ErrInvalidParameters
	}
	lang, opts := searchkey.Normalize(in.Settings)

	if opts.Insights {
		if in.UserID == 0 {
			return nil, ErrUnauthorized
		}
		if _, err := s.credits.CheckBalance(ctx, in.UserID); err != nil {
			return nil, err
		}
	}

	plan := &SearchPlan{
		UserID:   in.UserID,
		Query:    query,
		Language: lang,
		Options:  opts,
	}

	if hit := s.lookup(ctx, query, lang, opts); hit != nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		plan.Hit = hit
		return plan, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	body, err := s.backend.Search(ctx, &backend.SearchRequest{
		Query:    query,
		Settings: opts.Settings(lang),
	})
	if err != nil {
		s.log.WithError(err).WithField("language", lang).Error("search backend call failed")
		return nil, ErrBackendUnavailable
	}
	plan.body = body
	return plan, nil
}

// lookup returns the newest reusable row whose options cover opts. Lookup
// failures read as a miss.
func (s *SearchService) lookup(ctx context.Context, query, lang string, opts searchkey.Options) *model.CanonicalSearch {
	candidates, err := s.searchRepo.FindReusable(ctx, query, lang, candidateLimit)
	if err != nil {
		s.log.WithError(err).Warn("search cache lookup failed")
		return nil
	}

	for _, c := range candidates {
		stored, err := searchkey.Parse(c.Options)
		if err != nil {
			continue
		}
		if opts.SatisfiedBy(stored) {
			return c
		}
	}
	return nil
}

// Stream writes the plan's events to w, then persists and bills as the
// outcome allows. Persistence and billing failures are logged only; the
// returned error is about the stream itself.
func (s *SearchService) Stream(ctx context.Context, plan *SearchPlan, w io.Writer) (*SearchOutcome, error) {
	sw := sse.NewWriter(w)
	if plan.Hit != nil {
		return s.replay(ctx, plan, sw)
	}
	return s.proxy(ctx, plan, sw)
}

func (s *SearchService) replay(ctx context.Context, plan *SearchPlan, sw *sse.Writer) (*SearchOutcome, error) {
	hit := plan.Hit
	out := &SearchOutcome{CacheHit: true, SearchID: hit.ID}

	results := sse.ResultsPayload{
		BibleResults:      listOrEmpty(hit.BibleResults),
		CommentaryResults: listOrEmpty(hit.CommentaryResults),
		SearchID:          hit.ID,
	}
	text := ""
	if plan.Options.Insights {
		text = hit.Response
	}

	if err := s.replayer.Replay(ctx, sw, results, text); err != nil {
		return out, err
	}
	out.Completed = true
	ctx = context.WithoutCancel(ctx)

	hasResults := text != "" || !sse.IsEmptyList(results.BibleResults) || !sse.IsEmptyList(results.CommentaryResults)
	if plan.Options.Insights && plan.UserID != 0 && hasResults {
		s.bill(ctx, plan, out)
	}
	return out, nil
}

func (s *SearchService) proxy(ctx context.Context, plan *SearchPlan, sw *sse.Writer) (*SearchOutcome, error) {
	defer plan.body.Close()

	out := &SearchOutcome{}
	acc := sse.NewAccumulator()
	src := io.TeeReader(plan.body, acc)

	buf := make([]byte, 4096)
	var tail [2]byte
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := sw.Forward(buf[:n]); werr != nil {
				return out, werr
			}
			tail = lastTwo(tail, buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.log.WithError(err).WithField("query_len", len(plan.Query)).Warn("search stream interrupted")
			if tail != [2]byte{'\n', '\n'} {
				_ = sw.Forward([]byte("\n\n"))
			}
			_ = sw.Event(sse.EventError, sse.ErrorPayload{Error: ErrBackendUnavailable.Error()})
			return out, ErrBackendUnavailable
		}
	}
	acc.Close()
	out.Completed = true
	// the stream is complete; a client leaving now must not drop the writes
	ctx = context.WithoutCancel(ctx)

	if acc.ParseErrors > 0 {
		s.log.WithField("parse_errors", acc.ParseErrors).Warn("unreadable events in search stream")
	}
	if acc.SawError() {
		s.log.WithField("backend_error", acc.ErrorMessage()).Warn("search backend reported an error")
		return out, nil
	}
	if !acc.HasResults() {
		return out, nil
	}

	if !plan.Options.Insights || acc.Text() != "" {
		s.persist(ctx, plan, acc, out)
	}
	if plan.Options.Insights && plan.UserID != 0 {
		s.bill(ctx, plan, out)
	}
	return out, nil
}

// persist stores the generation and links the caller to it
func (s *SearchService) persist(ctx context.Context, plan *SearchPlan, acc *sse.Accumulator, out *SearchOutcome) {
	text := acc.Text()
	record := &model.CanonicalSearch{
		Query:             plan.Query,
		Language:          plan.Language,
		Options:           datatypes.JSON(plan.Options.JSON()),
		OptionsKey:        plan.Options.Key(),
		Response:          text,
		ResponseHash:      searchkey.ResponseHash(text),
		BibleResults:      datatypes.JSON(acc.BibleResults()),
		CommentaryResults: datatypes.JSON(acc.CommentaryResults()),
		Source:            model.SearchSourceBackend,
	}

	saved, link, err := s.searchRepo.SaveWithAssociation(ctx, record, plan.UserID)
	if err != nil {
		s.log.WithError(fmt.Errorf("%w: %v", ErrPersistenceFailure, err)).
			WithField("user_id", plan.UserID).Error("failed to store search")
		return
	}

	out.Persisted = true
	out.SearchID = saved.ID
	if link == nil {
		return
	}
	out.HistoryID = link.ID
	s.announce(ctx, &pubsub.HistoryEvent{
		Type:      pubsub.TypeHistoryCreated,
		UserID:    plan.UserID,
		HistoryID: link.ID,
		SearchID:  saved.ID,
		Query:     saved.Query,
	})
}

// bill charges for a delivered insight. A short balance here is not an
// error for the caller: the answer has already been shown.
func (s *SearchService) bill(ctx context.Context, plan *SearchPlan, out *SearchOutcome) {
	balance, ok, err := s.credits.Deduct(ctx, plan.UserID, 0)
	switch {
	case err != nil:
		metrics.CreditDeductions.WithLabelValues("error").Inc()
		s.log.WithError(err).WithField("user_id", plan.UserID).Error("failed to deduct search credit")
	case !ok:
		metrics.CreditDeductions.WithLabelValues("insufficient").Inc()
		s.log.WithFields(logrus.Fields{
			"user_id": plan.UserID,
			"balance": balance,
		}).Warn("balance too low to bill delivered search")
	default:
		metrics.CreditDeductions.WithLabelValues("ok").Inc()
		out.Billed = true
		out.Balance = balance
	}
}

func (s *SearchService) announce(ctx context.Context, evt *pubsub.HistoryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishHistory(ctx, evt); err != nil {
		s.log.WithError(err).WithField("user_id", evt.UserID).Warn("failed to publish history event")
	}
}

func listOrEmpty(raw datatypes.JSON) []byte {
	if sse.IsEmptyList([]byte(raw)) {
		return []byte("[]")
	}
	return raw
}

func lastTwo(prev [2]byte, p []byte) [2]byte {
	switch len(p) {
	case 0:
		return prev
	case 1:
		return [2]byte{prev[1], p[0]}
	default:
		return [2]byte{p[len(p)-2], p[len(p)-1]}
	}
}
