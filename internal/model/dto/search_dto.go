package dto

// SearchRequest starts a search; settings carries language and option toggles
type SearchRequest struct {
	Query    string                 `json:"query" binding:"required"`
	Settings map[string]interface{} `json:"settings"`
}
