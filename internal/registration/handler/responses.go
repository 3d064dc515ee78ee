package handler

import "eventreg/internal/registration/models"

// SubmitResponse is returned by POST /registrations.
type SubmitResponse struct {
	OK       bool   `json:"ok"`
	ID       string `json:"id"`
	Sequence int64  `json:"sequence"`
}

// ListResponse wraps list and search results. Items is never null.
type ListResponse struct {
	OK    bool                   `json:"ok"`
	Items []*models.Registration `json:"items"`
}

func newListResponse(items []*models.Registration) *ListResponse {
	if items == nil {
		items = []*models.Registration{}
	}
	return &ListResponse{OK: true, Items: items}
}
