package models

import (
	dbmodels "review-hub-backend/db/models"
)

// SearchHit is a review returned by search together with its score.
type SearchHit struct {
	Score  float64         `json:"score"`
	Review dbmodels.Review `json:"review"`
}

type SearchResponse struct {
	Hits  []SearchHit `json:"hits"`
	Total uint64      `json:"total"`
	From  int         `json:"from"`
	Size  int         `json:"size"`
}
