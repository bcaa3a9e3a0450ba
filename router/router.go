package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/billiard-pos/config"
	"github.com/yeremiapane/billiard-pos/controllers"
	"github.com/yeremiapane/billiard-pos/kds"
	"github.com/yeremiapane/billiard-pos/middlewares"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/services"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, svcs *services.Services, hub *kds.Hub, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigin))
	if cfg.RateLimitRPS > 0 {
		r.Use(middlewares.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitRPS).RateLimit())
	}

	userCtrl := controllers.NewUserController(db)
	tableCtrl := controllers.NewTableController(db, hub)
	productCtrl := controllers.NewProductController(db, cfg.VenueTaxRate)
	sessionCtrl := controllers.NewSessionController(svcs.Sessions)
	orderCtrl := controllers.NewOrderController(svcs.Orders)
	kitchenCtrl := controllers.NewKitchenController(svcs.Kitchen, hub)
	paymentCtrl := controllers.NewPaymentController(db, svcs.Settlement)
	reservationCtrl := controllers.NewReservationController(svcs.Settlement, svcs.Ledger)
	customerCtrl := controllers.NewCustomerController(svcs.Ledger)
	adminCtrl := controllers.NewAdminController(db, svcs.Exports)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	r.GET("/products", productCtrl.GetAllProducts)
	r.GET("/categories", productCtrl.GetCategories)
	r.POST("/orders", orderCtrl.CreateMobileOrder)
	r.GET("/orders/:order_id", orderCtrl.GetOrder)

	// ----------------------------------------------------------------
	//                      LOGGED-IN USERS
	// ----------------------------------------------------------------
	account := r.Group("/")
	account.Use(middlewares.AuthMiddleware())
	{
		account.GET("/profile", userCtrl.GetProfile)
		account.POST("/logout", userCtrl.Logout)
		account.GET("/account/balance", customerCtrl.GetMyBalance)
		account.GET("/reservations", reservationCtrl.ListReservations)
		account.POST("/reservations", reservationCtrl.CreateReservation)
	}

	money := account.Group("/")
	money.Use(middlewares.PaymentSecurityHeaders(), middlewares.PaymentRateLimiter(), middlewares.LogPaymentRequest())
	money.POST("/reservations/cancel", reservationCtrl.CancelReservation)

	// ----------------------------------------------------------------
	//                      STAFF ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware())

	kitchen := admin.Group("/")
	kitchen.Use(middlewares.RequireRoles(models.RoleChef, models.RoleStaff))
	{
		kitchen.GET("/kitchen/display", kitchenCtrl.GetDisplay)
		kitchen.POST("/order-items/:item_id/serve", kitchenCtrl.MarkItemServed)
		kitchen.POST("/orders/:order_id/ready", kitchenCtrl.MarkOrderReady)
		kitchen.POST("/orders/:order_id/serve", kitchenCtrl.MarkOrderServed)
	}

	staff := admin.Group("/")
	staff.Use(middlewares.RequireRoles(models.RoleStaff))
	{
		staff.GET("/tables", tableCtrl.GetAllTables)
		staff.GET("/tables/:table_id", tableCtrl.GetTableByID)
		staff.PATCH("/tables/:table_id/clean", tableCtrl.MarkTableClean)

		staff.GET("/sessions", sessionCtrl.ListSessions)
		staff.POST("/sessions", sessionCtrl.OpenSession)
		staff.GET("/sessions/:session_id", sessionCtrl.GetSession)
		staff.POST("/sessions/:session_id/pause", sessionCtrl.PauseSession)
		staff.POST("/sessions/:session_id/resume", sessionCtrl.ResumeSession)
		staff.POST("/sessions/:session_id/release", sessionCtrl.ReleaseSession)
		staff.PATCH("/sessions/:session_id", sessionCtrl.RenameSession)

		staff.GET("/orders", orderCtrl.GetAllOrders)
		staff.POST("/orders", orderCtrl.CreateOrder)
		staff.GET("/orders/:order_id", orderCtrl.GetOrder)
		staff.POST("/orders/:order_id/items", orderCtrl.AddItem)
		staff.POST("/orders/:order_id/submit", orderCtrl.SubmitOrder)
		staff.GET("/orders/:order_id/payments", paymentCtrl.GetOrderPayments)
		staff.PATCH("/order-items/:item_id", orderCtrl.UpdateItemQuantity)
		staff.POST("/order-items/:item_id/void", orderCtrl.VoidItem)

		staff.GET("/customers", userCtrl.GetAllUsers)
		staff.GET("/customers/:customer_id/balance", customerCtrl.GetBalance)
		staff.GET("/reservations", reservationCtrl.ListReservations)
		staff.POST("/reservations", reservationCtrl.CreateReservation)
	}

	payments := staff.Group("/")
	payments.Use(middlewares.PaymentSecurityHeaders(), middlewares.PaymentRateLimiter(), middlewares.LogPaymentRequest())
	{
		payments.POST("/orders/:order_id/pay", paymentCtrl.PayOrder)
		payments.POST("/customers/:customer_id/ledger", customerCtrl.PostLedgerEntry)
	}

	adminOnly := admin.Group("/")
	adminOnly.Use(middlewares.RequireRoles())
	{
		adminOnly.POST("/users", userCtrl.CreateUser)
		adminOnly.GET("/users", userCtrl.GetAllUsers)
		adminOnly.POST("/tables", tableCtrl.CreateTable)
		adminOnly.PATCH("/tables/:table_id", tableCtrl.UpdateTable)
		adminOnly.DELETE("/tables/:table_id", tableCtrl.DeleteTable)
		adminOnly.POST("/products", productCtrl.CreateProduct)
		adminOnly.GET("/products", productCtrl.GetAllProducts)
		adminOnly.PATCH("/products/:product_id", productCtrl.UpdateProduct)
		adminOnly.GET("/dashboard/stats", adminCtrl.GetDashboardStats)
		adminOnly.GET("/transactions/export", adminCtrl.ExportTransactions)
		adminOnly.GET("/audit-logs", adminCtrl.GetAuditLogs)
	}

	// WebSocket endpoint; the token travels in the query string
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware(), middlewares.RoleCheck())
	{
		wsGroup.GET("/:role", kitchenCtrl.KDSHandler)
	}

	return r
}
