package dto

import "github.com/qs3c/bible_search_server/internal/pkg/media"

// MediaRequest media search query string
type MediaRequest struct {
	Query    string `form:"q"`
	Language string `form:"lang,default=en"`
}

type MediaResponse struct {
	Images []media.Item `json:"images"`
	Cached bool         `json:"cached"`
}
