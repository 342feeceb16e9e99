package Controllers

import (
	"strconv"

	"Beacon/Models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StoreHandler serves the tenant's store and region directory.
type StoreHandler struct {
	DB *gorm.DB
}

func NewStoreHandler(db *gorm.DB) *StoreHandler {
	return &StoreHandler{DB: db}
}

func (h *StoreHandler) GetStores(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)

	query := h.DB.Where("company_id = ?", user.CompanyID)
	if raw := c.Query("region_id"); raw != "" {
		regionID, err := strconv.Atoi(raw)
		if err != nil || regionID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid region id"})
		}
		query = query.Where("region_id = ?", regionID)
	}

	var stores []Models.Store
	if err := query.Order("name").Find(&stores).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch stores",
		})
	}
	return c.JSON(stores)
}

func (h *StoreHandler) GetRegions(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(Models.User)

	var regions []Models.Region
	if err := h.DB.Where("company_id = ?", user.CompanyID).
		Order("name").Find(&regions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch regions",
		})
	}
	return c.JSON(regions)
}
