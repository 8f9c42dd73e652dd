package bootstrap

import (
	"context"
	"fmt"

	bleveRepositories "review-hub-backend/bleve/repositories"
	"review-hub-backend/config"
	"review-hub-backend/db/models"
	reviewRepositories "review-hub-backend/reviews/repositories"

	"go.uber.org/zap"
)

const reindexBatchSize = 500

// IndexBleveData drops every index and rebuilds the review index from the
// store. It returns the number of reviews indexed.
func IndexBleveData(
	ctx context.Context,
	reviewRepo reviewRepositories.ReviewRepository,
	bleveRepo bleveRepositories.BleveRepositoryInterface,
) (int, error) {
	if err := bleveRepo.DeleteAllIndices(ctx); err != nil {
		return 0, fmt.Errorf("delete indices: %w", err)
	}

	indexed := 0
	err := reviewRepo.EachBatch(ctx, reindexBatchSize, func(batch []models.Review) error {
		if err := bleveRepo.IndexReviews(batch); err != nil {
			return err
		}
		indexed += len(batch)
		return nil
	})
	if err != nil {
		config.Logger.Error("Failed to rebuild review index", zap.Error(err), zap.Int("indexed", indexed))
		return indexed, err
	}

	config.Logger.Info("Review index rebuilt", zap.Int("indexed", indexed))
	return indexed, nil
}
