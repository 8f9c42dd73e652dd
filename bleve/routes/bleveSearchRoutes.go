package routes

import (
	"review-hub-backend/bleve/controllers"

	"github.com/gofiber/fiber/v2"
)

// InitBleveRoutes mounts search on an already protected reviews router.
func InitBleveRoutes(reviews fiber.Router, controller *controllers.SearchController) {
	reviews.Get("/search", controller.SearchReviewsController)
}
