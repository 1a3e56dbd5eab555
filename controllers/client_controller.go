package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"realnext/middleware"
	"realnext/models"
	"realnext/utils"
)

type UpdateClientRequest struct {
	Name *string `json:"name" validate:"omitempty,max=150"`
}

type UpdateSettingsRequest struct {
	MenuAccess map[string]bool `json:"menu_access"`
	Features   map[string]bool `json:"features"`
}

type UpdateClientStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

type ClientController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewClientController(db *gorm.DB, logger *log.Logger) *ClientController {
	return &ClientController{DB: db, Logger: logger}
}

func (cc *ClientController) GetClient(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)
	return c.JSON(utils.SuccessResponse(rc.Client))
}

func (cc *ClientController) UpdateClient(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	var req UpdateClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if req.Name != nil {
		if err := cc.DB.Model(rc.Client).Update("name", *req.Name).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update client", nil)
		}
	}
	return c.JSON(utils.SuccessResponse(rc.Client))
}

// UpdateSettings replaces the tenant's override maps. Overrides take effect
// on the next request; entitlements are not cached.
func (cc *ClientController) UpdateSettings(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	var req UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	settings := rc.Client.Settings
	if req.MenuAccess != nil {
		settings.MenuAccess = req.MenuAccess
	}
	if req.Features != nil {
		settings.Features = req.Features
	}

	if err := cc.DB.Model(rc.Client).Update("settings", settings).Error; err != nil {
		utils.LogError("client_settings_update_failed", err, map[string]interface{}{
			"client_id": rc.Client.ID,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update settings", nil)
	}

	utils.LogEvent("client_settings_updated", map[string]interface{}{
		"client_id":  rc.Client.ID,
		"updated_by": rc.User.ID,
	})
	return c.JSON(utils.SuccessResponse(settings))
}

// UpdateStatus suspends or reactivates a client. Super admin only; an
// inactive client locks out every regular member at the auth gate.
func (cc *ClientController) UpdateStatus(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)
	if rc == nil || !rc.IsSuperAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Super admin access required",
		})
	}

	var req UpdateClientStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	id := utils.ParseUint(c.Params("id"))
	result := cc.DB.Model(&models.Client{}).Where("id = ?", id).Update("status", req.Status)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update client status", nil)
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Client not found",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
