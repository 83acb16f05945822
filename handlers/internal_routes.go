package handlers

import (
	"points-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupInternalRoutes wires service-to-service routes. These sit behind the
// gateway token like everything else but carry no user context: the auth
// service calls /internal/users on signup, and operators can trigger a reset
// sweep manually.
func SetupInternalRoutes(app *fiber.App, accountService *services.AccountService, resetService *services.ResetService) {
	internal := app.Group("/internal")

	internal.Post("/users", func(c *fiber.Ctx) error {
		var req struct {
			UID         string `json:"uid"`
			Email       string `json:"email"`
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.UID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "uid is required"})
		}

		user, err := accountService.ProvisionUser(c.Context(), req.UID, req.Email, req.DisplayName)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	})

	internal.Post("/reset", func(c *fiber.Ctx) error {
		summary, err := resetService.ResetMonthlyFreePoints(c.Context())
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(summary)
	})
}
