package controllers

import (
	"errors"

	"review-hub-backend/imports/requests"
	"review-hub-backend/imports/services"

	"github.com/gofiber/fiber/v2"
)

// AppendChunkController stages the next chunk of a pending job. A chunk that
// was already staged is acknowledged with 200 and changes nothing.
func (ic *ImportController) AppendChunkController(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return invalidJobID(c)
	}

	var req requests.AppendChunkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	job, duplicate, err := ic.Service.AppendChunk(c.Context(), userID, jobID, req)
	if err != nil && job != nil && errors.Is(err, services.ErrEnqueueFailed) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success":       false,
			"import_job_id": job.ID,
			"message":       "Import could not be queued, please retry",
			"error":         err.Error(),
		})
	}
	if err != nil {
		return respondError(c, err, "Failed to stage import chunk")
	}

	status, message := fiber.StatusAccepted, "Chunk staged"
	switch {
	case duplicate:
		status, message = fiber.StatusOK, "Chunk already staged"
	case job.IsSealed():
		message = "Import job queued for processing"
	}
	return c.Status(status).JSON(fiber.Map{
		"success":       true,
		"import_job_id": job.ID,
		"message":       message,
		"data":          accepted(job),
	})
}
