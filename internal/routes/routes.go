package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/soleshop/internal/config"
	"github.com/example/soleshop/internal/handlers"
	"github.com/example/soleshop/internal/middleware"
	"github.com/example/soleshop/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	lineService := services.NewLINEService(cfg.LINENotifyToken)
	returnService := services.NewReturnService(db, lineService, cfg.RefundCreditValidityDays)
	referralService := services.NewReferralService(db, lineService)
	walletService := services.NewWalletService(db)
	newebpayService := services.NewNewebPayService(db, cfg.NewebPayHashKey, cfg.NewebPayHashIV)

	authHandler := handlers.NewAuthHandler(db, cfg, referralService)
	orderHandler := handlers.NewOrderHandler(db, referralService)
	returnHandler := handlers.NewReturnHandler(returnService)
	walletHandler := handlers.NewWalletHandler(walletService)
	referralHandler := handlers.NewReferralHandler(referralService)
	profileHandler := handlers.NewProfileHandler(db)
	paymentHandler := handlers.NewPaymentHandler(newebpayService)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Gateway callbacks (authenticated by check value, not JWT)
	api.Post("/payments/newebpay/notify", paymentHandler.Notify)

	// Customer routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)

	protected.Post("/returns", returnHandler.CreateReturn)
	protected.Get("/returns", returnHandler.ListMyReturns)
	protected.Get("/returns/:id", returnHandler.GetMyReturn)
	protected.Post("/returns/:id/tracking", returnHandler.UploadTracking)

	protected.Get("/wallet/credits", walletHandler.ListCredits)
	protected.Get("/wallet/coupons", walletHandler.ListCoupons)

	protected.Get("/referral/code", referralHandler.MyCode)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.AdminOnly())

	admin.Get("/returns", returnHandler.ListAllReturns)
	admin.Post("/returns/:id/transition", returnHandler.Transition)

	admin.Put("/orders/:id/status", orderHandler.UpdateOrderStatus)

	admin.Get("/referral/settings", referralHandler.GetSettings)
	admin.Put("/referral/settings", referralHandler.UpdateSettings)
	admin.Get("/referral/stats", referralHandler.Stats)
}
