package controllers

import (
	"errors"
	"strings"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/integrations/repositories"
	"review-hub-backend/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IntegrationController struct {
	IntegrationRepo repositories.IntegrationRepository
}

type CreateIntegrationRequest struct {
	Name string `json:"name"`
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": "Unauthorized",
		"error":   "Authentication required",
	})
}

// CreateIntegrationController registers a CSV review source for the caller.
func (ic *IntegrationController) CreateIntegrationController(c *fiber.Ctx) error {
	payload, ok := middleware.CurrentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateIntegrationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 120 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   "name is required and must be at most 120 characters",
		})
	}

	integration := &models.Integration{
		UserID: payload.UserID,
		Name:   name,
		Kind:   models.IntegrationKindCSV,
	}
	if err := ic.IntegrationRepo.Create(c.Context(), integration); err != nil {
		config.Logger.Error("Failed to create integration", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to create integration",
		})
	}

	config.Logger.Info("Integration created",
		zap.String("integration_id", integration.ID.String()),
		zap.String("user_id", payload.UserID.String()))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Integration created",
		"data":    integration,
	})
}

func (ic *IntegrationController) GetIntegrationsController(c *fiber.Ctx) error {
	payload, ok := middleware.CurrentUser(c)
	if !ok {
		return unauthorized(c)
	}

	integrations, err := ic.IntegrationRepo.ListForUser(c.Context(), payload.UserID)
	if err != nil {
		config.Logger.Error("Failed to list integrations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch integrations",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": integrations,
	})
}

// GetIntegrationController returns one integration with its review count,
// average rating and last sync time.
func (ic *IntegrationController) GetIntegrationController(c *fiber.Ctx) error {
	payload, ok := middleware.CurrentUser(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid integration ID format",
		})
	}

	integration, err := ic.IntegrationRepo.GetForUser(c.Context(), payload.UserID, id)
	if errors.Is(err, repositories.ErrIntegrationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Integration not found",
		})
	}
	if err != nil {
		config.Logger.Error("Failed to fetch integration", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch integration",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": integration,
	})
}
