package handlers

import (
	"errors"
	"log"
	"strconv"

	"points-ledger-system/middleware"
	"points-ledger-system/models"
	"points-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// errStatus is the closed mapping from service sentinel errors to HTTP
// statuses. Anything outside this table is an internal store failure.
var errStatus = []struct {
	err    error
	status int
}{
	{services.ErrInvalidCode, fiber.StatusBadRequest},
	{services.ErrInvalidAmount, fiber.StatusBadRequest},
	{services.ErrSelfReferral, fiber.StatusBadRequest},
	{services.ErrUserNotFound, fiber.StatusNotFound},
	{services.ErrCodeNotFound, fiber.StatusNotFound},
	{services.ErrAlreadyReferred, fiber.StatusConflict},
	{services.ErrUserAlreadyExists, fiber.StatusConflict},
	{services.ErrCodeInactive, fiber.StatusPreconditionFailed},
	{services.ErrCodeExpired, fiber.StatusPreconditionFailed},
	{services.ErrInsufficientPoints, fiber.StatusPaymentRequired},
}

func errorResponse(c *fiber.Ctx, err error) error {
	for _, m := range errStatus {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(fiber.Map{"error": m.err.Error()})
		}
	}
	log.Printf("[HTTP] Internal error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// SetupPointRoutes wires the user-facing ledger routes. All of them require
// the gateway user context.
func SetupPointRoutes(app *fiber.App, pointService *services.PointService, referralService *services.ReferralService) {
	secured := app.Group("/user", middleware.UserContextMiddleware())

	secured.Post("/referral", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if err := referralService.ApplyReferralBonus(c.Context(), userID, req.Code); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	secured.Post("/points/consume", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Amount  int64  `json:"amount"`
			Purpose string `json:"purpose"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		result, err := pointService.ConsumePoints(c.Context(), userID, req.Amount, req.Purpose)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"success":          true,
			"free_points_used": result.FreePointsUsed,
			"paid_points_used": result.PaidPointsUsed,
		})
	})

	secured.Get("/points", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		snapshot, err := pointService.GetUserPoint(c.Context(), userID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(snapshot)
	})

	secured.Get("/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		limit := services.DefaultHistoryLimit
		if limitStr := c.Query("limit"); limitStr != "" {
			l, err := strconv.Atoi(limitStr)
			if err != nil || l <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
			}
			limit = l
		}

		var typeFilter models.HistoryType
		if typeStr := c.Query("type"); typeStr != "" {
			typeFilter = models.HistoryType(typeStr)
			if !models.ValidHistoryTypes[typeFilter] {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown history type"})
			}
		}

		history, err := pointService.GetPointHistory(c.Context(), userID, limit, typeFilter)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"history": history})
	})
}
