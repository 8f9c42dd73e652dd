package controllers

import (
	"review-hub-backend/bleve/models"
	"review-hub-backend/bleve/repositories"
	"review-hub-backend/config"
	"review-hub-backend/middleware"
	"review-hub-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SearchReviewsController answers ?q=&provider=&min_rating= from the review
// index and loads the matching rows from the store. Reviews of other users
// are never returned.
func (sc *SearchController) SearchReviewsController(ctx *fiber.Ctx) error {
	payload, ok := middleware.CurrentUser(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
			"error":   "Authentication required",
		})
	}

	params := pagination.ParsePaginationParams(ctx)
	if err := pagination.ValidatePaginationParams(params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	minRating := ctx.QueryInt("min_rating", 0)
	if minRating < 0 || minRating > 5 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "min_rating must be between 1 and 5",
		})
	}

	filters := repositories.ReviewSearchFilters{
		Provider:  ctx.Query("provider"),
		MinRating: minRating,
	}

	results, err := sc.repo.SearchReviews(payload.UserID, ctx.Query("q"), filters, params.Offset(), params.PageSize)
	if err != nil {
		config.Logger.Error("Review search failed", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	ids := make([]uuid.UUID, 0, len(results.Hits))
	for _, hit := range results.Hits {
		ids = append(ids, hit.ID)
	}
	rows, err := sc.reviews.GetByIDs(ctx.Context(), payload.UserID, ids)
	if err != nil {
		config.Logger.Error("Failed to load searched reviews", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	response := models.SearchResponse{
		Hits:  make([]models.SearchHit, 0, len(rows)),
		Total: results.Total,
		From:  params.Offset(),
		Size:  params.PageSize,
	}
	byID := make(map[uuid.UUID]int, len(rows))
	for i, r := range rows {
		byID[r.ID] = i
	}
	// Keep the index ranking. Hits whose row is gone are skipped.
	for _, hit := range results.Hits {
		if i, ok := byID[hit.ID]; ok {
			response.Hits = append(response.Hits, models.SearchHit{Score: hit.Score, Review: rows[i]})
		}
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    response,
	})
}
