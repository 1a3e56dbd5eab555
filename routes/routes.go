package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	"realnext/config"
	controller "realnext/controllers"
	"realnext/entitlement"
	"realnext/middleware"
	"realnext/models"
	"realnext/store"
	"realnext/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Shared authorization machinery
	stores := store.NewStore(db)
	codec := utils.NewTokenCodec(config.AppConfig.JWTSecret, store.SystemClock{})
	resolver := entitlement.NewResolver(stores)
	evaluator := entitlement.NewEvaluator(stores)
	gate := middleware.NewGate(codec, stores, stores, stores, resolver, evaluator, authLogger)

	var mailer *utils.Mailer
	if config.AppConfig.SMTPHost != "" {
		mailer = utils.NewMailer(
			config.AppConfig.SMTPHost,
			config.AppConfig.SMTPPort,
			config.AppConfig.SMTPUsername,
			config.AppConfig.SMTPPassword,
			config.AppConfig.FromEmail,
		)
	}

	authController := controller.NewAuthController(db, codec, authLogger)
	memberController := controller.NewMemberController(db, mailer, log.New(os.Stdout, "TEAM: ", log.LstdFlags))
	roleController := controller.NewRoleController(db, log.New(os.Stdout, "ROLE: ", log.LstdFlags))
	clientController := controller.NewClientController(db, log.New(os.Stdout, "CLIENT: ", log.LstdFlags))
	billingController := controller.NewBillingController(db, stores, log.New(os.Stdout, "BILLING: ", log.LstdFlags))
	controller.InitStripe()

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (rate limited)
	auth.Post("/register", middleware.LoginRateLimiter(), authController.Register)
	auth.Post("/login", middleware.LoginRateLimiter(), authController.Login)
	auth.Post("/refresh", authController.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", authController.GoogleOAuth)
	auth.Get("/google/callback", authController.GoogleOAuthCallback)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", gate.Protected())
	protectedAuth.Get("/me", authController.Me)
	protectedAuth.Post("/switch-client", authController.SwitchClient)

	// Stripe webhook (verified by signature, not by session)
	app.Post("/payment/webhook", billingController.HandleStripeWebhook)

	// API group with versioning and protection
	api := app.Group("/api/v1", gate.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Client (tenant) routes
	client := api.Group("/client", middleware.RequireTenant())
	client.Get("/", clientController.GetClient)
	client.Put("/", middleware.RequireRole(models.RoleAdmin), clientController.UpdateClient)
	client.Put("/settings", middleware.RequireRole(models.RoleAdmin), clientController.UpdateSettings)

	// Super-admin client administration
	api.Put("/admin/clients/:id/status", clientController.UpdateStatus)

	// Team routes
	team := api.Group("/team", middleware.RequireTenant())
	team.Get("/", middleware.RequireAnyPermission("team:read", "team:manage"), memberController.ListMembers)
	team.Post("/invite", middleware.RequirePermission("team:manage"), memberController.InviteMember)
	team.Put("/:id", middleware.RequirePermission("team:manage"), memberController.UpdateMember)
	team.Delete("/:id", middleware.RequirePermission("team:manage"), memberController.RemoveMember)

	// Role routes
	roles := api.Group("/roles", middleware.RequireTenant())
	roles.Get("/", middleware.RequireAnyPermission("roles:read", "roles:manage"), roleController.ListRoles)
	roles.Get("/permissions", middleware.RequireAnyPermission("roles:read", "roles:manage"), roleController.ListPermissions)
	roles.Post("/", middleware.RequirePermission("roles:manage"), roleController.CreateRole)
	roles.Put("/:id", middleware.RequirePermission("roles:manage"), roleController.UpdateRole)
	roles.Delete("/:id", middleware.RequirePermission("roles:manage"), roleController.DeleteRole)

	// Billing routes
	billing := api.Group("/billing")
	billing.Get("/plans", billingController.ListPlans)
	billing.Get("/subscription", middleware.RequireTenant(), billingController.GetSubscription)
	billing.Post("/checkout", middleware.RequireTenant(), middleware.RequireRole(models.RoleAdmin), billingController.CreateCheckout)

	authLogger.Println("Routes initialized successfully")
}
