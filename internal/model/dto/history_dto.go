package dto

import (
	"encoding/json"
	"time"
)

// HistoryListRequest history pagination
type HistoryListRequest struct {
	Limit  int `form:"limit,default=100"`
	Offset int `form:"offset,default=0"`
}

// HistoryItem is one association joined with its canonical search
type HistoryItem struct {
	ID                int64           `json:"id"`
	SearchID          int64           `json:"search_id"`
	Query             string          `json:"query"`
	Language          string          `json:"language"`
	Response          string          `json:"response"`
	BibleResults      json.RawMessage `json:"bible_results"`
	CommentaryResults json.RawMessage `json:"commentary_results"`
	Settings          json.RawMessage `json:"settings"`
	ThumbsUp          bool            `json:"thumbs_up"`
	ThumbsDown        bool            `json:"thumbs_down"`
	CreatedAt         time.Time       `json:"created_at"`
}

// AppendHistoryRequest links the caller to an existing search by SearchID,
// or stores a full entry when SearchID is zero
type AppendHistoryRequest struct {
	SearchID          int64                  `json:"search_id"`
	Query             string                 `json:"query"`
	Response          string                 `json:"response"`
	BibleResults      json.RawMessage        `json:"bible_results"`
	CommentaryResults json.RawMessage        `json:"commentary_results"`
	Settings          map[string]interface{} `json:"settings"`
}
