package Controllers

import (
	"errors"
	"strings"

	"Beacon/Models"
	"Beacon/Roles"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RoleHandler administers the tenant's role hierarchy. Every mutation
// drops the cached hierarchy so policy decisions see the change at once.
type RoleHandler struct {
	DB    *gorm.DB
	Roles *Roles.Service
}

func NewRoleHandler(db *gorm.DB, roles *Roles.Service) *RoleHandler {
	return &RoleHandler{DB: db, Roles: roles}
}

func (h *RoleHandler) GetRoles(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)

	var roles []Models.Role
	if err := h.DB.Where("company_id = ?", user.CompanyID).
		Order("level DESC").Find(&roles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch roles",
		})
	}
	return c.JSON(roles)
}

type CreateRoleRequest struct {
	Key   string `json:"key" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Level int    `json:"level" validate:"required,min=1"`
}

func (h *RoleHandler) CreateRole(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)

	var req CreateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrors(err),
		})
	}

	role := Models.Role{
		CompanyID: user.CompanyID,
		Key:       strings.ToUpper(strings.TrimSpace(req.Key)),
		Name:      req.Name,
		Level:     req.Level,
		IsActive:  true,
	}
	if err := h.DB.Create(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "A role with this key already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to create role",
		})
	}

	h.Roles.Invalidate(c.UserContext(), user.CompanyID)
	return c.Status(fiber.StatusCreated).JSON(role)
}

type UpdateRoleRequest struct {
	Name     *string `json:"name"`
	Level    *int    `json:"level" validate:"omitempty,min=1"`
	IsActive *bool   `json:"is_active"`
}

func (h *RoleHandler) UpdateRole(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)
	roleID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid role id"})
	}

	var req UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationErrors(err),
		})
	}

	var role Models.Role
	if err := h.DB.Where("id = ? AND company_id = ?", roleID, user.CompanyID).
		First(&role).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Not found",
		})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Level != nil {
		updates["level"] = *req.Level
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return c.JSON(role)
	}

	if err := h.DB.Model(&role).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to update role",
		})
	}

	h.Roles.Invalidate(c.UserContext(), user.CompanyID)
	return c.JSON(role)
}
