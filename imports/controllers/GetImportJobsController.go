package controllers

import (
	"review-hub-backend/imports/requests"
	"review-hub-backend/utils"
	"review-hub-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

// GetImportJobsController lists the caller's jobs, newest first. Supports
// status and integration_id filters.
func (ic *ImportController) GetImportJobsController(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	params := pagination.ParsePaginationParams(c, "status", "integration_id")
	if err := pagination.ValidatePaginationParams(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	jobs, total, err := ic.Service.List(c.Context(), userID, params.Filters, params.PageSize, params.Offset())
	if err != nil {
		return respondError(c, err, "Failed to fetch import jobs")
	}

	items := make([]requests.ImportStatus, 0, len(jobs))
	for i := range jobs {
		items = append(items, requests.NewImportStatus(&jobs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, items, total, params),
	})
}

func (ic *ImportController) GetImportJobController(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return invalidJobID(c)
	}

	job, err := ic.Service.Status(c.Context(), userID, jobID)
	if err != nil {
		return respondError(c, err, "Failed to fetch import job")
	}

	status := requests.NewImportStatus(job)
	if status.HasReport {
		status.ReportURL = utils.AbsoluteURL(c, "/api/v1/imports/"+job.ID.String()+"/report")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":       true,
		"import_job_id": job.ID,
		"data":          status,
	})
}
