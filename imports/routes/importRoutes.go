package routes

import (
	"review-hub-backend/imports/controllers"
	"review-hub-backend/imports/services"
	"review-hub-backend/middleware"

	"github.com/gofiber/fiber/v2"
)

func ImportRouterInit(
	app *fiber.App,
	ctx *middleware.AppContext,
	service *services.IngestionService,
) {
	importController := &controllers.ImportController{
		Service: service,
	}

	importRoutes := app.Group("/api/v1/imports", middleware.ProtectedRoute(ctx))

	// Static paths first so they are not taken for job ids.
	importRoutes.Post("/preview", importController.PreviewImportController)
	importRoutes.Get("/template", importController.DownloadTemplateController)

	importRoutes.Post("/", importController.CreateImportController)
	importRoutes.Get("/", importController.GetImportJobsController)
	importRoutes.Get("/:id", importController.GetImportJobController)
	importRoutes.Post("/:id/chunks", importController.AppendChunkController)
	importRoutes.Get("/:id/errors", importController.GetImportErrorsController)
	importRoutes.Get("/:id/report", importController.DownloadImportReportController)
	importRoutes.Post("/:id/cancel", importController.CancelImportController)
}
