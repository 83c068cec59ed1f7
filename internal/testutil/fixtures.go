package testutil

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/pkg/searchkey"
)

// TestUser creates a user with 10 credits
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := time.Now().UnixNano()
	user := &model.User{
		Subject:  fmt.Sprintf("sub-%d", n),
		Email:    fmt.Sprintf("test_%d@example.com", n),
		Credits:  10,
		Settings: datatypes.JSON(`{}`),
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithSubject sets the identity subject
func WithSubject(subject string) func(*model.User) {
	return func(u *model.User) {
		u.Subject = subject
	}
}

// WithEmail sets the email
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithCredits sets the credit balance
func WithCredits(credits int) func(*model.User) {
	return func(u *model.User) {
		u.Credits = credits
	}
}

// WithSettings sets the settings blob
func WithSettings(settings map[string]interface{}) func(*model.User) {
	return func(u *model.User) {
		data, _ := json.Marshal(settings)
		u.Settings = datatypes.JSON(data)
	}
}

// TestCanonicalSearch creates a cached search for "What is love?"
func TestCanonicalSearch(t *testing.T, db *gorm.DB, opts ...func(*model.CanonicalSearch)) *model.CanonicalSearch {
	t.Helper()

	search := &model.CanonicalSearch{
		Query:             "What is love?",
		Language:          "en",
		Response:          "Love is patient.",
		BibleResults:      datatypes.JSON(`["1 Corinthians 13:4"]`),
		CommentaryResults: datatypes.JSON(`[]`),
		Source:            model.SearchSourceBackend,
	}
	WithOptions(searchkey.Options{OldTestament: true, NewTestament: true, Insights: true})(search)

	for _, opt := range opts {
		opt(search)
	}
	search.ResponseHash = searchkey.ResponseHash(search.Response)

	if err := db.Create(search).Error; err != nil {
		t.Fatalf("Failed to create test canonical search: %v", err)
	}

	return search
}

// WithSource sets where the row came from
func WithSource(source string) func(*model.CanonicalSearch) {
	return func(s *model.CanonicalSearch) {
		s.Source = source
	}
}

// WithQuery sets the query text
func WithQuery(query string) func(*model.CanonicalSearch) {
	return func(s *model.CanonicalSearch) {
		s.Query = query
	}
}

// WithLanguage sets the language
func WithLanguage(lang string) func(*model.CanonicalSearch) {
	return func(s *model.CanonicalSearch) {
		s.Language = lang
	}
}

// WithOptions sets the option blob and its key
func WithOptions(o searchkey.Options) func(*model.CanonicalSearch) {
	return func(s *model.CanonicalSearch) {
		s.Options = datatypes.JSON(o.JSON())
		s.OptionsKey = o.Key()
	}
}

// WithResponse sets the generated text
func WithResponse(text string) func(*model.CanonicalSearch) {
	return func(s *model.CanonicalSearch) {
		s.Response = text
	}
}

// WithCreatedAt sets the creation time
func WithCreatedAt(at time.Time) func(*model.CanonicalSearch) {
	return func(s *model.CanonicalSearch) {
		s.CreatedAt = at
	}
}

// TestUserSearch links a user to a canonical search
func TestUserSearch(t *testing.T, db *gorm.DB, userID, searchID int64, opts ...func(*model.UserSearch)) *model.UserSearch {
	t.Helper()

	link := &model.UserSearch{
		UserID:   userID,
		SearchID: searchID,
	}

	for _, opt := range opts {
		opt(link)
	}

	if err := db.Create(link).Error; err != nil {
		t.Fatalf("Failed to create test user search: %v", err)
	}

	return link
}

// WithVote sets an up or down vote
func WithVote(up bool) func(*model.UserSearch) {
	return func(u *model.UserSearch) {
		u.SetVote(up)
	}
}

// TestTransaction creates a transaction in the given status
func TestTransaction(t *testing.T, db *gorm.DB, userID int64, sessionID, status string) *model.Transaction {
	t.Helper()

	tx := &model.Transaction{
		UserID:    userID,
		Amount:    5,
		Currency:  "USD",
		Credits:   10,
		SessionID: sessionID,
		Status:    status,
	}

	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}

	return tx
}
