package v1

import (
	"github.com/gin-gonic/gin"

	"produceledger/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// InvoiceRouteHandler defines the interface for purchase and sales invoice handlers.
type InvoiceRouteHandler interface {
	CatalogRouteHandler

	AddLine(c *gin.Context)
	UpdateLine(c *gin.Context)
	DeleteLine(c *gin.Context)

	RecordPayment(c *gin.Context)
	UpdatePayment(c *gin.Context)
	DeletePayment(c *gin.Context)
	GetAttachment(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes.
//
// Usage:
//
//	handler := handlers.NewVendorHandler(base, svc.Vendors)
//	RegisterCatalogRoutes(rg.Group("/vendors"), handler)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
}

// RegisterInvoiceRoutes registers CRUD plus line and payment routes for an invoice.
// Deleting a whole invoice is reserved to admins.
func RegisterInvoiceRoutes(group *gin.RouterGroup, handler InvoiceRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", middleware.RequireAdmin(), handler.Delete)

	group.POST("/:id/lines", handler.AddLine)
	group.PUT("/:id/lines/:lineId", handler.UpdateLine)
	group.DELETE("/:id/lines/:lineId", handler.DeleteLine)

	group.POST("/:id/payments", handler.RecordPayment)
	group.PUT("/:id/payments/:paymentId", handler.UpdatePayment)
	group.DELETE("/:id/payments/:paymentId", handler.DeletePayment)
	group.GET("/:id/payments/:paymentId/attachment", handler.GetAttachment)
}
