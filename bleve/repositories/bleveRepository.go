package repositories

import (
	"context"

	bleveindex "review-hub-backend/bleve/services"
	"review-hub-backend/db/models"

	"github.com/google/uuid"
)

type BleveRepository struct {
	indexer bleveindex.IndexingServiceInterface
}

type BleveRepositoryInterface interface {
	// General
	DeleteAllIndices(ctx context.Context) error

	// ==== Review Indexing ====
	IndexReviews(reviews []models.Review) error
	DeleteReview(reviewID uuid.UUID) error
	SearchReviews(userID uuid.UUID, q string, filters ReviewSearchFilters, from, size int) (*ReviewSearchResult, error)
}

// NewBleveRepository registers the index mappings it needs and returns both
// the struct and the interface.
func NewBleveRepository(indexer bleveindex.IndexingServiceInterface) (*BleveRepository, BleveRepositoryInterface) {
	indexer.RegisterMapping(ReviewsIndex, reviewIndexMapping())
	repo := &BleveRepository{indexer: indexer}
	return repo, repo
}

func (r *BleveRepository) DeleteAllIndices(ctx context.Context) error {
	return r.indexer.DeleteAllIndices()
}
