package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"realnext/entitlement"
	"realnext/middleware"
	"realnext/models"
	"realnext/utils"
)

type InviteMemberRequest struct {
	Email            string   `json:"email" validate:"required,email"`
	Name             string   `json:"name" validate:"omitempty,max=100"`
	Role             string   `json:"role" validate:"required,oneof=admin manager user"`
	AssignedFeatures []string `json:"assigned_features"`
	AssignedModules  []string `json:"assigned_modules"`
}

type UpdateMemberRequest struct {
	Role             *string   `json:"role" validate:"omitempty,oneof=admin manager user"`
	RoleID           *uint     `json:"role_id"`
	Permissions      *[]string `json:"permissions"`
	AssignedFeatures *[]string `json:"assigned_features"`
	AssignedModules  *[]string `json:"assigned_modules"`
}

type MemberController struct {
	DB     *gorm.DB
	Mailer *utils.Mailer
	Logger *log.Logger
}

func NewMemberController(db *gorm.DB, mailer *utils.Mailer, logger *log.Logger) *MemberController {
	return &MemberController{DB: db, Mailer: mailer, Logger: logger}
}

func (mc *MemberController) ListMembers(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	var members []models.ClientUser
	err := mc.DB.Scopes(entitlement.TenantFilter(rc)).
		Preload("User").
		Preload("CustomRole").
		Find(&members).Error
	if err != nil {
		utils.LogError("member_list_failed", err, map[string]interface{}{"client_id": rc.Client.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load members", nil)
	}
	for i := range members {
		members[i].User.Sanitize()
	}
	return c.JSON(utils.SuccessResponse(members))
}

// InviteMember adds a user to the caller's client. Unknown emails get a
// placeholder account that is claimed through the password reset flow; the
// invite email is best-effort and never fails the request.
func (mc *MemberController) InviteMember(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	var req InviteMemberRequest
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

	var user models.User
	err := mc.DB.Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to invite member", nil)
		}
		placeholder, err := utils.GenerateSecureToken()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to invite member", nil)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(placeholder), bcrypt.DefaultCost)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to invite member", nil)
		}
		user = models.User{
			Email:        req.Email,
			PasswordHash: string(hash),
			IsActive:     true,
		}
		if req.Name != "" {
			user.Name = &req.Name
		}
		if err := mc.DB.Create(&user).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to invite member", nil)
		}
	}

	var existing models.ClientUser
	if err := mc.DB.Where("user_id = ? AND client_id = ?", user.ID, rc.Client.ID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "User is already a member of this client",
		})
	}

	membership := models.ClientUser{
		ClientID:         rc.Client.ID,
		UserID:           user.ID,
		Role:             req.Role,
		AssignedFeatures: models.StringList(req.AssignedFeatures),
		AssignedModules:  models.StringList(req.AssignedModules),
	}
	if err := mc.DB.Create(&membership).Error; err != nil {
		utils.LogError("member_invite_failed", err, map[string]interface{}{
			"client_id": rc.Client.ID,
			"email":     req.Email,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to invite member", nil)
	}

	if mc.Mailer != nil {
		inviter := ""
		if rc.User.Name != nil {
			inviter = *rc.User.Name
		} else {
			inviter = rc.User.Email
		}
		if err := mc.Mailer.SendInviteEmail(req.Email, rc.Client.Name, inviter); err != nil {
			mc.Logger.Printf("invite email to %s failed: %v", req.Email, err)
		}
	}

	user.Sanitize()
	membership.User = user
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(membership))
}

func (mc *MemberController) UpdateMember(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	membership, err := mc.loadMember(c, rc)
	if membership == nil {
		return err
	}

	var req UpdateMemberRequest
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

	// Owners keep full access; they cannot be demoted.
	if membership.IsOwner && req.Role != nil && *req.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "The client owner cannot be demoted",
		})
	}

	updates := map[string]interface{}{}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.RoleID != nil {
		updates["role_id"] = *req.RoleID
	}
	if req.Permissions != nil {
		updates["permissions"] = models.StringList(*req.Permissions)
	}
	if req.AssignedFeatures != nil {
		updates["assigned_features"] = models.StringList(*req.AssignedFeatures)
	}
	if req.AssignedModules != nil {
		updates["assigned_modules"] = models.StringList(*req.AssignedModules)
	}
	if len(updates) == 0 {
		return c.JSON(utils.SuccessResponse(membership))
	}

	if err := mc.DB.Model(membership).Updates(updates).Error; err != nil {
		utils.LogError("member_update_failed", err, map[string]interface{}{
			"membership_id": membership.ID,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update member", nil)
	}
	return c.JSON(utils.SuccessResponse(membership))
}

func (mc *MemberController) RemoveMember(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	membership, err := mc.loadMember(c, rc)
	if membership == nil {
		return err
	}
	if membership.IsOwner {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "The client owner cannot be removed",
		})
	}

	if err := mc.DB.Delete(membership).Error; err != nil {
		utils.LogError("member_remove_failed", err, map[string]interface{}{
			"membership_id": membership.ID,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove member", nil)
	}
	return c.JSON(fiber.Map{"success": true})
}

// loadMember fetches the target membership and verifies it belongs to the
// caller's client.
func (mc *MemberController) loadMember(c *fiber.Ctx, rc *entitlement.RequestContext) (*models.ClientUser, error) {
	id := utils.ParseUint(c.Params("id"))

	var membership models.ClientUser
	if err := mc.DB.First(&membership, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Member not found",
			})
		}
		return nil, utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load member", nil)
	}
	if err := entitlement.ValidateOwnership(rc, membership.ClientID); err != nil {
		return nil, c.Status(fiber.StatusForbidden).JSON(err)
	}
	return &membership, nil
}
