package controllers

import (
	"errors"

	"review-hub-backend/db/models"
	"review-hub-backend/imports/requests"
	"review-hub-backend/imports/services"

	"github.com/gofiber/fiber/v2"
)

// CancelImportController cancels a pending job at once and asks a running
// one to stop before its next row.
func (ic *ImportController) CancelImportController(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return invalidJobID(c)
	}

	job, err := ic.Service.Cancel(c.Context(), userID, jobID)
	if errors.Is(err, services.ErrJobFinished) && job != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":       false,
			"import_job_id": job.ID,
			"message":       "Import job already finished",
			"data":          requests.NewImportStatus(job),
		})
	}
	if err != nil {
		return respondError(c, err, "Failed to cancel import job")
	}

	message := "Cancellation requested"
	if job.Status == models.ImportJobCancelled {
		message = "Import job cancelled"
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":       true,
		"import_job_id": job.ID,
		"message":       message,
		"data":          requests.NewImportStatus(job),
	})
}
