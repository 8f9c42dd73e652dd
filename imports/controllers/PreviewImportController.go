package controllers

import (
	"review-hub-backend/config"
	"review-hub-backend/internal/reviewcsv"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PreviewImportController validates an uploaded file without importing it.
// The optional column_mapping form field holds a JSON object of field to
// source column.
func (ic *ImportController) PreviewImportController(c *fiber.Ctx) error {
	if _, ok := currentUserID(c); !ok {
		return unauthorized(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Failed to get file",
			"error":   "multipart field 'file' is required",
		})
	}

	var wire map[string]string
	if raw := c.FormValue("column_mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &wire); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "column_mapping must be a JSON object",
				"error":   err.Error(),
			})
		}
	}

	f, err := file.Open()
	if err != nil {
		config.Logger.Error("Failed to open uploaded file", zap.String("filename", file.Filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to read uploaded file",
		})
	}
	defer f.Close()

	preview, err := ic.Service.Preview(c.Context(), file.Filename, file.Size, f, wire)
	if err != nil {
		return respondError(c, err, "Failed to preview file")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    preview,
	})
}

// DownloadTemplateController serves ?schema=full|simplified as a CSV file.
func (ic *ImportController) DownloadTemplateController(c *fiber.Ctx) error {
	schema := reviewcsv.ParseSchema(c.Query("schema"))

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+reviewcsv.TemplateFilename(schema)+`"`)
	return reviewcsv.WriteTemplate(c.Response().BodyWriter(), schema)
}
