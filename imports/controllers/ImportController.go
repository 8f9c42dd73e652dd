package controllers

import (
	"errors"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	"review-hub-backend/imports/requests"
	"review-hub-backend/imports/services"
	integrationRepositories "review-hub-backend/integrations/repositories"
	"review-hub-backend/internal/reviewcsv"
	"review-hub-backend/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ImportController struct {
	Service *services.IngestionService
}

// respondError maps service errors to status codes. Unknown errors are
// logged and hidden behind a generic 500.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	status := fiber.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, reviewcsv.ErrMalformedInput),
		errors.Is(err, reviewcsv.ErrIncompleteMapping),
		errors.Is(err, reviewcsv.ErrUnknownField),
		errors.Is(err, reviewcsv.ErrUnknownHeader),
		errors.Is(err, reviewcsv.ErrDuplicateMapping),
		errors.Is(err, repositories.ErrJobNotPending):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, reviewcsv.ErrFileTooLarge):
		status, message = fiber.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, repositories.ErrJobNotFound):
		status, message = fiber.StatusNotFound, "Import job not found"
	case errors.Is(err, integrationRepositories.ErrIntegrationNotFound):
		status, message = fiber.StatusNotFound, "Integration not found"
	case errors.Is(err, services.ErrJobFinished):
		status, message = fiber.StatusConflict, "Import job already finished"
	case errors.Is(err, services.ErrNoReport):
		status, message = fiber.StatusNotFound, "Import job has no failed rows"
	case errors.Is(err, services.ErrEnqueueFailed):
		status, message = fiber.StatusServiceUnavailable, "Import could not be queued, please retry"
	default:
		config.Logger.Error(fallback, zap.Error(err))
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
		"error":   message,
	})
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	payload, ok := middleware.CurrentUser(c)
	if !ok {
		return uuid.Nil, false
	}
	return payload.UserID, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": "Unauthorized",
		"error":   "Authentication required",
	})
}

func jobIDParam(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func accepted(job *models.ImportJob) requests.ImportAccepted {
	return requests.ImportAccepted{
		ImportJobID:  job.ID,
		Status:       job.Status,
		StagedRows:   job.StagedRows,
		StagedChunks: job.StagedChunks,
		TotalRows:    job.TotalRows,
		Sealed:       job.IsSealed(),
	}
}

func invalidJobID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Invalid import job ID format",
		"error":   "Invalid import job ID format",
	})
}
