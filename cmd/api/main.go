package main

import (
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	config "github.com/nashipae/tutorconnect/configs"
	"github.com/nashipae/tutorconnect/database"
	"github.com/nashipae/tutorconnect/handlers"
	"github.com/nashipae/tutorconnect/jobs"
	"github.com/nashipae/tutorconnect/middleware"
	"github.com/nashipae/tutorconnect/notifications"
	"github.com/nashipae/tutorconnect/payments"
	"github.com/nashipae/tutorconnect/routes"
	"github.com/nashipae/tutorconnect/services"
	"github.com/nashipae/tutorconnect/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	utils.InitializeLogger()
	log := utils.GetLogger()
	defer log.Sync()

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	if err := database.SeedAdmin(db, log); err != nil {
		log.Fatal("failed to seed admin user", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	} else {
		log.Warn("REDIS_ADDR not set, rate limiting disabled")
	}

	store := database.NewStore(db)
	gateway := payments.NewStripeService(cfg.StripeKey, cfg.StripeWebhookSecret, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, log)
	notifier := notifications.NewEmailService(log)

	lifecycle := services.NewLifecycleService(store, gateway, notifier, cfg.PlatformCommissionRate, log)

	bookingHandler := handlers.NewBookingHandler(lifecycle, store)
	checkoutHandler := handlers.NewCheckoutHandler(lifecycle)
	webhookHandler := handlers.NewWebhookHandler(gateway, lifecycle, log)
	rateLimiter := middleware.NewRateLimiter(rdb, 30, time.Minute, log)

	c := cron.New()
	reminders := jobs.NewReminderJob(store, notifier, log)
	c.AddFunc("*/5 * * * *", reminders.Run)
	c.Start()

	app := fiber.New(fiber.Config{
		AppName:       "TutorConnect",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Error("unhandled request error",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.Error(err))
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.BookingRoutes(app, bookingHandler, rateLimiter)
	routes.PaymentRoutes(app, checkoutHandler, webhookHandler, rateLimiter)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("server failed to start", zap.Error(err))
	}
}
