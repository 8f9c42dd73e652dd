package controllers

import (
	"path/filepath"

	"review-hub-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

// GetImportErrorsController pages through failed rows ordered by row number.
func (ic *ImportController) GetImportErrorsController(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return invalidJobID(c)
	}

	params := pagination.ParsePaginationParams(c)
	if err := pagination.ValidatePaginationParams(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rows, total, err := ic.Service.Errors(c.Context(), userID, jobID, params.PageSize, params.Offset())
	if err != nil {
		return respondError(c, err, "Failed to fetch import errors")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":       true,
		"import_job_id": jobID,
		"data":          pagination.NewPaginatedResponse(c, rows, total, params),
	})
}

// DownloadImportReportController sends the xlsx report of failed rows.
func (ic *ImportController) DownloadImportReportController(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return invalidJobID(c)
	}

	path, err := ic.Service.ReportFile(c.Context(), userID, jobID)
	if err != nil {
		return respondError(c, err, "Failed to build import report")
	}

	return c.Download(path, filepath.Base(path))
}
