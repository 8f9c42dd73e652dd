package routes

import (
	"review-hub-backend/integrations/controllers"
	"review-hub-backend/integrations/repositories"
	"review-hub-backend/middleware"

	"github.com/gofiber/fiber/v2"
)

func IntegrationRouterInit(
	app *fiber.App,
	ctx *middleware.AppContext,
	integrationRepository repositories.IntegrationRepository,
) {
	integrationController := &controllers.IntegrationController{
		IntegrationRepo: integrationRepository,
	}

	integrationRoutes := app.Group("/api/v1/integrations", middleware.ProtectedRoute(ctx))
	integrationRoutes.Post("/", integrationController.CreateIntegrationController)
	integrationRoutes.Get("/", integrationController.GetIntegrationsController)
	integrationRoutes.Get("/:id", integrationController.GetIntegrationController)
}
