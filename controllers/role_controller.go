package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"realnext/entitlement"
	"realnext/middleware"
	"realnext/models"
	"realnext/utils"
)

type RoleRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Permissions []string `json:"permissions" validate:"required"`
}

type RoleController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewRoleController(db *gorm.DB, logger *log.Logger) *RoleController {
	return &RoleController{DB: db, Logger: logger}
}

// ListRoles returns the tenant's custom roles plus the shared system roles.
func (rcCtrl *RoleController) ListRoles(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	var roles []models.Role
	err := rcCtrl.DB.
		Where("client_id = ? OR (client_id IS NULL AND is_system = ?)", rc.Client.ID, true).
		Find(&roles).Error
	if err != nil {
		utils.LogError("role_list_failed", err, map[string]interface{}{"client_id": rc.Client.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load roles", nil)
	}
	return c.JSON(utils.SuccessResponse(roles))
}

func (rcCtrl *RoleController) ListPermissions(c *fiber.Ctx) error {
	var permissions []models.Permission
	if err := rcCtrl.DB.Order("category, code").Find(&permissions).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load permissions", nil)
	}
	return c.JSON(utils.SuccessResponse(permissions))
}

func (rcCtrl *RoleController) CreateRole(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	var req RoleRequest
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

	role := models.Role{
		ClientID:    &rc.Client.ID,
		Name:        req.Name,
		Permissions: models.StringList(req.Permissions),
	}
	if err := rcCtrl.DB.Create(&role).Error; err != nil {
		utils.LogError("role_create_failed", err, map[string]interface{}{"client_id": rc.Client.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create role", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(role))
}

func (rcCtrl *RoleController) UpdateRole(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	role, err := rcCtrl.loadRole(c, rc)
	if role == nil {
		return err
	}

	var req RoleRequest
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

	updates := map[string]interface{}{
		"name":        req.Name,
		"permissions": models.StringList(req.Permissions),
	}
	if err := rcCtrl.DB.Model(role).Updates(updates).Error; err != nil {
		utils.LogError("role_update_failed", err, map[string]interface{}{"role_id": role.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update role", nil)
	}
	return c.JSON(utils.SuccessResponse(role))
}

func (rcCtrl *RoleController) DeleteRole(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	role, err := rcCtrl.loadRole(c, rc)
	if role == nil {
		return err
	}

	// Detach the role from memberships before deleting; members fall back
	// to their legacy role's system permissions.
	err = rcCtrl.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ClientUser{}).
			Where("role_id = ?", role.ID).
			Update("role_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(role).Error
	})
	if err != nil {
		utils.LogError("role_delete_failed", err, map[string]interface{}{"role_id": role.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete role", nil)
	}
	return c.JSON(fiber.Map{"success": true})
}

// loadRole fetches the target role and rejects system roles and roles owned
// by other clients. Writes the response on failure and returns nil.
func (rcCtrl *RoleController) loadRole(c *fiber.Ctx, rc *entitlement.RequestContext) (*models.Role, error) {
	id := utils.ParseUint(c.Params("id"))

	var role models.Role
	if err := rcCtrl.DB.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Role not found",
			})
		}
		return nil, utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load role", nil)
	}
	if role.IsSystem {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "System roles cannot be modified",
		})
	}
	if role.ClientID == nil {
		return nil, c.Status(fiber.StatusForbidden).JSON(entitlement.ErrForbidden)
	}
	if err := entitlement.ValidateOwnership(rc, *role.ClientID); err != nil {
		return nil, c.Status(fiber.StatusForbidden).JSON(err)
	}
	return &role, nil
}
