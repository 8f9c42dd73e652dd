package controllers

import (
	"errors"

	"review-hub-backend/imports/requests"
	"review-hub-backend/imports/services"

	"github.com/gofiber/fiber/v2"
)

// CreateImportController opens a job with its first chunk and answers 202.
// The rows are processed in the background.
func (ic *ImportController) CreateImportController(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req requests.CreateImportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	job, err := ic.Service.CreateJob(c.Context(), userID, req)
	if err != nil && job != nil && errors.Is(err, services.ErrEnqueueFailed) {
		// The job exists and was failed. Its id lets the caller look it up.
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success":       false,
			"import_job_id": job.ID,
			"message":       "Import could not be queued, please retry",
			"error":         err.Error(),
		})
	}
	if err != nil {
		return respondError(c, err, "Failed to create import job")
	}

	message := "Import job created"
	if job.IsSealed() {
		message = "Import job queued for processing"
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":       true,
		"import_job_id": job.ID,
		"message":       message,
		"data":          accepted(job),
	})
}
