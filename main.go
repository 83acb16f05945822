package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"points-ledger-system/handlers"
	"points-ledger-system/middleware"
	"points-ledger-system/models"
	"points-ledger-system/services"
	"points-ledger-system/utils"
	"points-ledger-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// Only Gateway requests allowed — no exceptions.
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.PointUser{},
		&models.ReferralCode{},
		&models.PointHistory{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	accountService := services.NewAccountService(db)
	referralService := services.NewReferralService(db)
	pointService := services.NewPointService(db)
	resetService := services.NewResetService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pull-based signup delivery; optional when the auth service pushes
	// through /internal/users instead.
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL != "" {
		serviceToken := os.Getenv("POINTS_SERVICE_TOKEN")
		signupWorker := workers.NewSignupSyncWorker(db, accountService, authServiceURL, "/api/v1/public/signups", serviceToken)
		signupWorker.Start(ctx)
	} else {
		log.Println("AUTH_SERVICE_URL not set — signup sync worker disabled, relying on /internal/users")
	}

	resetService.StartResetScheduler()

	handlers.SetupPointRoutes(app, pointService, referralService)
	handlers.SetupInternalRoutes(app, accountService, resetService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Points ledger service running on http://localhost:%s", port)
	log.Println("Monthly reset scheduler running (04:00 UTC, 1st of each month)")
	log.Println("GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
