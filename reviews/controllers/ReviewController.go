package controllers

import (
	"review-hub-backend/config"
	"review-hub-backend/middleware"
	"review-hub-backend/reviews/repositories"
	"review-hub-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ReviewController struct {
	ReviewRepo repositories.ReviewRepository
}

// GetFilteredReviewsController lists the caller's reviews, newest first.
func (rc *ReviewController) GetFilteredReviewsController(c *fiber.Ctx) error {
	payload, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
			"error":   "Authentication required",
		})
	}

	params := pagination.ParsePaginationParams(c, "provider", "integration_id", "min_rating", "max_rating", "from", "to")
	if err := pagination.ValidatePaginationParams(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	reviews, total, err := rc.ReviewRepo.GetFilteredReviews(c.Context(), payload.UserID, params.Filters, params.PageSize, params.Offset())
	if err != nil {
		config.Logger.Error("Failed to fetch filtered reviews", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reviews"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, reviews, total, params),
	})
}
