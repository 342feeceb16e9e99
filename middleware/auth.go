package middleware

import (
	"Beacon/Models"
	"Beacon/Roles"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

var secretKey = "secret"

// SetSecret configures the JWT signing secret. Called once at startup.
func SetSecret(secret string) {
	if secret != "" {
		secretKey = secret
	}
}

// Secret returns the configured JWT signing secret.
func Secret() string {
	return secretKey
}

// Protected authenticates the JWT cookie and stores the user in the request
// context. Role-level decisions happen downstream against the tenant's role
// hierarchy rather than here.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cookie := c.Cookies("jwt")
		if cookie == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not Logged In.",
			})
		}

		token, err := jwt.ParseWithClaims(cookie, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid token claims",
			})
		}

		var user Models.User
		result := Models.DB.Where("id = ? AND is_active = ?", claims.Issuer, true).First(&user)
		if result.Error != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "User not found",
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}

// HQOnly requires the authenticated user to be a headquarters user. Runs
// after Protected.
func HQOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(Models.User)
		if !ok || !user.IsHQ() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "You do not have permission to access this page",
			})
		}
		return c.Next()
	}
}

// TopRoleOnly requires the authenticated user to hold the top active role of
// their company, per the tenant's own hierarchy. Used for role
// administration. Runs after Protected.
func TopRoleOnly(roles *Roles.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(Models.User)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not Logged In.",
			})
		}

		needsVerification, err := roles.RequiresVerification(c.UserContext(), user.CompanyID, user.RoleKey)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to load role hierarchy",
			})
		}
		// Anyone below the top of the hierarchy is not an admin here.
		if needsVerification {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Insufficient permissions to access this resource",
			})
		}
		return c.Next()
	}
}
