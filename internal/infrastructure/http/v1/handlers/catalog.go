package handlers

import (
	"github.com/gin-gonic/gin"

	"produceledger/internal/core/entity"
	"produceledger/internal/domain"
	"produceledger/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves CRUD for single-table entities: the vendor, customer
// and product catalogs and the overhead registers.
type CatalogHandler[T entity.Validatable, Req any] struct {
	*BaseHandler
	service *domain.CatalogService[T]

	mapCreate func(req Req) T
	mapUpdate func(req Req, existing T) T
}

// CatalogHandlerConfig configures the catalog handler.
type CatalogHandlerConfig[T entity.Validatable, Req any] struct {
	Service   *domain.CatalogService[T]
	MapCreate func(req Req) T
	MapUpdate func(req Req, existing T) T
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler[T entity.Validatable, Req any](base *BaseHandler, cfg CatalogHandlerConfig[T, Req]) *CatalogHandler[T, Req] {
	return &CatalogHandler[T, Req]{
		BaseHandler: base,
		service:     cfg.Service,
		mapCreate:   cfg.MapCreate,
		mapUpdate:   cfg.MapUpdate,
	}
}

// List handles GET /{entity}.
func (h *CatalogHandler[T, Req]) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	result, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result))
}

// Get handles GET /{entity}/:id.
func (h *CatalogHandler[T, Req]) Get(c *gin.Context) {
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	e, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// Create handles POST /{entity}.
func (h *CatalogHandler[T, Req]) Create(c *gin.Context) {
	var req Req
	if !h.BindJSON(c, &req) {
		return
	}
	e := h.mapCreate(req)
	if err := h.service.Create(c.Request.Context(), e); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// Update handles PUT /{entity}/:id.
func (h *CatalogHandler[T, Req]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req Req
	if !h.BindJSON(c, &req) {
		return
	}
	existing, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	updated := h.mapUpdate(req, existing)
	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Delete handles DELETE /{entity}/:id.
func (h *CatalogHandler[T, Req]) Delete(c *gin.Context) {
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), entityID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
