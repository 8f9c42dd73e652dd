package routes

import (
	"review-hub-backend/middleware"
	"review-hub-backend/reviews/controllers"
	"review-hub-backend/reviews/repositories"

	"github.com/gofiber/fiber/v2"
)

// ReviewRouterInit returns the protected group so search can be mounted on it.
func ReviewRouterInit(
	app *fiber.App,
	ctx *middleware.AppContext,
	reviewRepository repositories.ReviewRepository,
) fiber.Router {
	reviewController := &controllers.ReviewController{
		ReviewRepo: reviewRepository,
	}

	reviewRoutes := app.Group("/api/v1/reviews", middleware.ProtectedRoute(ctx))
	reviewRoutes.Get("/", reviewController.GetFilteredReviewsController)
	return reviewRoutes
}
