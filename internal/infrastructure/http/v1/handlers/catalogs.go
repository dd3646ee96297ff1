package handlers

import (
	"github.com/gin-gonic/gin"

	"produceledger/internal/domain/catalogs/customer"
	"produceledger/internal/domain/catalogs/product"
	"produceledger/internal/domain/catalogs/vendor"
	"produceledger/internal/domain/overheads"
	"produceledger/internal/infrastructure/http/v1/dto"
)

func NewVendorHandler(base *BaseHandler, service *vendor.Service) *CatalogHandler[*vendor.Vendor, dto.VendorRequest] {
	return NewCatalogHandler(base, CatalogHandlerConfig[*vendor.Vendor, dto.VendorRequest]{
		Service:   service.CatalogService,
		MapCreate: dto.VendorRequest.ToVendor,
		MapUpdate: dto.VendorRequest.Apply,
	})
}

func NewProductHandler(base *BaseHandler, service *product.Service) *CatalogHandler[*product.Product, dto.ProductRequest] {
	return NewCatalogHandler(base, CatalogHandlerConfig[*product.Product, dto.ProductRequest]{
		Service:   service.CatalogService,
		MapCreate: dto.ProductRequest.ToProduct,
		MapUpdate: dto.ProductRequest.Apply,
	})
}

// CustomerHandler adds the credit position to the catalog routes.
type CustomerHandler struct {
	*CatalogHandler[*customer.Customer, dto.CustomerRequest]
	service *customer.Service
}

func NewCustomerHandler(base *BaseHandler, service *customer.Service) *CustomerHandler {
	return &CustomerHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*customer.Customer, dto.CustomerRequest]{
			Service:   service.CatalogService,
			MapCreate: dto.CustomerRequest.ToCustomer,
			MapUpdate: dto.CustomerRequest.Apply,
		}),
		service: service,
	}
}

// Credit handles GET /customers/:id/credit.
func (h *CustomerHandler) Credit(c *gin.Context) {
	customerID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	credit, err := h.service.Credit(c.Request.Context(), customerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, credit)
}

func NewPackagingHandler(base *BaseHandler, services *overheads.Services) *CatalogHandler[*overheads.Packaging, dto.PackagingRequest] {
	return NewCatalogHandler(base, CatalogHandlerConfig[*overheads.Packaging, dto.PackagingRequest]{
		Service:   services.Packaging,
		MapCreate: dto.PackagingRequest.ToPackaging,
		MapUpdate: dto.PackagingRequest.Apply,
	})
}

func NewExpenseHandler(base *BaseHandler, services *overheads.Services) *CatalogHandler[*overheads.Expense, dto.ExpenseRequest] {
	return NewCatalogHandler(base, CatalogHandlerConfig[*overheads.Expense, dto.ExpenseRequest]{
		Service:   services.Expenses,
		MapCreate: dto.ExpenseRequest.ToExpense,
		MapUpdate: dto.ExpenseRequest.Apply,
	})
}

func NewDamageHandler(base *BaseHandler, services *overheads.Services) *CatalogHandler[*overheads.Damage, dto.DamageRequest] {
	return NewCatalogHandler(base, CatalogHandlerConfig[*overheads.Damage, dto.DamageRequest]{
		Service:   services.Damages,
		MapCreate: dto.DamageRequest.ToDamage,
		MapUpdate: dto.DamageRequest.Apply,
	})
}
