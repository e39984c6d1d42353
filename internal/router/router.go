package router

import (
	"time"

	"pharmacy/internal/config"
	"pharmacy/internal/handler"
	"pharmacy/internal/middleware"
	"pharmacy/internal/model"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
)

// New returns a configured Gin engine serving app.
func New(cfg *config.Config, app *App) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(300, time.Minute))

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(app.Auth)
	usersH := handler.NewUsersHandler(app.Auth)
	productsH := handler.NewProductsHandler(app.Product, app.Batch)
	batchesH := handler.NewBatchesHandler(app.Batch)
	stockH := handler.NewStockHandler(app.Stock)
	reservationsH := handler.NewReservationsHandler(app.Reservations, time.Duration(cfg.SaleReservationTTLMinutes)*time.Minute)
	salesH := handler.NewSalesHandler(app.Sale)
	inventoryH := handler.NewInventoryHandler(app.Inventory, cfg.ExpiryWarningDays)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(app.DB, app.Redis, app.Breaker))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	anyStaff := middleware.RequireRole(model.RoleCashier, model.RolePharmacist, model.RoleAdmin)
	stockStaff := middleware.RequireRole(model.RolePharmacist, model.RoleAdmin)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/products", anyStaff, productsH.List)
		v1.GET("/products/:id", anyStaff, productsH.Get)
		v1.GET("/products/:id/batches", anyStaff, productsH.Batches)
		v1.POST("/products", adminOnly, productsH.Create)
		v1.DELETE("/products/:id", adminOnly, productsH.Deactivate)

		v1.POST("/batches", stockStaff, batchesH.Receive)
		v1.DELETE("/batches/:id", stockStaff, batchesH.Deactivate)

		stock := v1.Group("/stock")
		{
			stock.GET("/available/:product_id", anyStaff, stockH.Available)
			stock.POST("/validate", anyStaff, stockH.Validate)
			stock.POST("/operations", stockStaff, stockH.Execute)
			stock.GET("/operations/:id", stockStaff, stockH.GetOperation)
		}

		res := v1.Group("/reservations")
		{
			res.POST("", anyStaff, reservationsH.Reserve)
			res.DELETE("/:id", anyStaff, reservationsH.Release)
			res.GET("/product/:product_id", anyStaff, reservationsH.ListActive)
			res.POST("/cleanup", adminOnly, reservationsH.Cleanup)
		}

		sales := v1.Group("/sales", anyStaff)
		{
			sales.POST("", salesH.Create)
			sales.GET("", salesH.List)
			sales.GET("/:id", salesH.Get)
			sales.POST("/:id/complete", salesH.Complete)
			sales.POST("/:id/cancel", salesH.Cancel)
		}

		inv := v1.Group("/inventory", stockStaff)
		{
			inv.GET("/alerts", inventoryH.LowStock)
			inv.GET("/expiring", inventoryH.Expiring)
			inv.GET("/movements", inventoryH.Movements)
		}

		users := v1.Group("/users", adminOnly)
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
