package dto

// VoteRequest needs HistoryID, or SearchID for results reached from cache
type VoteRequest struct {
	HistoryID int64  `json:"history_id"`
	SearchID  int64  `json:"search_id"`
	VoteType  string `json:"vote_type" binding:"required,oneof=up down"`
}

// VoteResponse carries the caller's vote and the search's aggregate
type VoteResponse struct {
	HistoryID  int64 `json:"history_id"`
	SearchID   int64 `json:"search_id"`
	ThumbsUp   bool  `json:"thumbs_up"`
	ThumbsDown bool  `json:"thumbs_down"`
	UpVotes    int64 `json:"up_votes"`
	DownVotes  int64 `json:"down_votes"`
}
