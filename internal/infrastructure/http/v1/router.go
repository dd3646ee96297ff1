// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"produceledger/internal/app"
	"produceledger/internal/core/tenant"
	"produceledger/internal/infrastructure/http/v1/dto"
	"produceledger/internal/infrastructure/http/v1/handlers"
	"produceledger/internal/infrastructure/http/v1/middleware"
	"produceledger/internal/infrastructure/metrics"
	"produceledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Bind resolves X-Tenant-ID and binds the tenant database to the request.
	Bind middleware.TenantBinder

	// Meta is the meta-database for readiness checks; Pools reports open tenant pools.
	Meta  handlers.Pinger
	Pools handlers.PoolCounter

	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator
	Services     *app.Services

	// Queue may be nil; async imports are then rejected.
	Queue handlers.ImportQueue
	// Metrics may be nil; /metrics is then not served.
	Metrics *metrics.Metrics
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	dto.RegisterValidators()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	health := handlers.NewHealthHandler(cfg.Meta, cfg.Pools)
	{
		g := router.Group("/health")
		g.GET("/live", health.Live)
		g.GET("/ready", health.Ready)
		g.GET("/info", health.Info)
	}
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TenantDB(cfg.Bind))

	authHandler := handlers.NewAuthHandler(base, svc.Auth)
	v1.POST("/auth/login", authHandler.Login)

	// TenantDB runs first, then Auth
	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))

	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/auth/users", middleware.RequireAdmin(), authHandler.CreateUser)

	registerCatalogRoutes(protected, base, svc)
	registerPurchaseRoutes(protected.Group("", middleware.RequireFeature(tenant.FeaturePurchases)), base, svc)
	registerSalesRoutes(protected.Group("", middleware.RequireFeature(tenant.FeatureSales)), base, svc)
	registerOverheadRoutes(protected.Group("", middleware.RequireFeature(tenant.FeatureExpenses)), base, svc)
	registerReportRoutes(protected.Group("", middleware.RequireFeature(tenant.FeatureReports)), base, svc)
	registerExchangeRoutes(protected, base, svc, cfg)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "route not found"})
	})

	return router
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	RegisterCatalogRoutes(rg.Group("/vendors"), handlers.NewVendorHandler(base, svc.Vendors))
	RegisterCatalogRoutes(rg.Group("/products"), handlers.NewProductHandler(base, svc.Products))

	customers := handlers.NewCustomerHandler(base, svc.Customers)
	g := rg.Group("/customers")
	RegisterCatalogRoutes(g, customers)
	g.GET("/:id/credit", customers.Credit)
}

func registerOverheadRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	RegisterCatalogRoutes(rg.Group("/packaging-invoices"), handlers.NewPackagingHandler(base, svc.Overheads))
	RegisterCatalogRoutes(rg.Group("/expenses"), handlers.NewExpenseHandler(base, svc.Overheads))
	RegisterCatalogRoutes(rg.Group("/damages"), handlers.NewDamageHandler(base, svc.Overheads))
}

func registerPurchaseRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	h := handlers.NewPurchaseHandler(base, svc.Purchases)
	g := rg.Group("/purchase-invoices")

	RegisterInvoiceRoutes(g, h)
	g.GET("/available", h.Available)
	g.GET("/:id/product-quantities", h.ProductQuantities)

	if svc.Invoices != nil {
		pdf := handlers.NewPDFHandler(base, svc.Invoices)
		g.GET("/:id/pdf", pdf.PurchaseInvoice)
	}
}

func registerSalesRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	h := handlers.NewSalesHandler(base, svc.Sales, svc.Lots)
	g := rg.Group("/sales-invoices")

	RegisterInvoiceRoutes(g, h)
	g.POST("/:id/finalize", h.Finalize)

	lots := g.Group("/:id/lots")
	lots.GET("", h.ListLots)
	lots.POST("", h.AllocateLot)
	lots.PUT("/:lotId", h.UpdateLot)
	lots.DELETE("/:lotId", h.RemoveLot)

	if svc.Invoices != nil {
		pdf := handlers.NewPDFHandler(base, svc.Invoices)
		g.GET("/:id/pdf", pdf.SalesInvoice)
	}
}

func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	h := handlers.NewReportsHandler(base, svc.Reports)
	rg.GET("/reports/dashboard", h.Dashboard)
}

func registerExchangeRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services, cfg RouterConfig) {
	h := handlers.NewExchangeHandler(base, svc.Importer, svc.Exporter, cfg.Queue, cfg.Metrics)

	purchases := rg.Group("", middleware.RequireFeature(tenant.FeaturePurchases))
	purchases.POST("/import/purchase-invoices", h.ImportPurchases)
	purchases.POST("/import/purchase-invoices/async", h.ImportPurchasesAsync)
	purchases.GET("/import/tasks/:taskId", h.TaskStatus)
	purchases.GET("/export/purchase-invoices.csv", h.ExportPurchases)

	rg.GET("/export/sales-invoices.csv", middleware.RequireFeature(tenant.FeatureSales), h.ExportSales)
}
