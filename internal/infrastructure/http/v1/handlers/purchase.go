package handlers

import (
	"github.com/gin-gonic/gin"

	"produceledger/internal/domain/documents/purchase"
	"produceledger/internal/infrastructure/http/v1/dto"
)

// PurchaseHandler serves purchase invoices (lots) with their lines and payments.
type PurchaseHandler struct {
	*BaseHandler
	service *purchase.Service
}

func NewPurchaseHandler(base *BaseHandler, service *purchase.Service) *PurchaseHandler {
	return &PurchaseHandler{BaseHandler: base, service: service}
}

func (h *PurchaseHandler) List(c *gin.Context) {
	var q dto.PurchaseListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(res))
}

func (h *PurchaseHandler) Get(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Get(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

func (h *PurchaseHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inv)
}

func (h *PurchaseHandler) Update(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PurchaseHeaderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := h.service.UpdateHeader(c.Request.Context(), invoiceID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

func (h *PurchaseHandler) Delete(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), invoiceID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// --- Lines ---

func (h *PurchaseHandler) AddLine(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PurchaseLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := h.service.AddLine(c.Request.Context(), invoiceID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, line)
}

func (h *PurchaseHandler) UpdateLine(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamID(c, "lineId")
	if !ok {
		return
	}
	var req dto.PurchaseLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := h.service.UpdateLine(c.Request.Context(), invoiceID, lineID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, line)
}

func (h *PurchaseHandler) DeleteLine(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamID(c, "lineId")
	if !ok {
		return
	}
	if err := h.service.DeleteLine(c.Request.Context(), invoiceID, lineID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// --- Payments ---

func (h *PurchaseHandler) RecordPayment(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.Bind(c, &req) {
		return
	}
	att, ok := h.Attachment(c)
	if !ok {
		return
	}
	p, err := h.service.RecordPayment(c.Request.Context(), invoiceID, req.ToPurchaseInput(att))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

func (h *PurchaseHandler) UpdatePayment(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.ParamID(c, "paymentId")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.Bind(c, &req) {
		return
	}
	att, ok := h.Attachment(c)
	if !ok {
		return
	}
	p, err := h.service.UpdatePayment(c.Request.Context(), invoiceID, paymentID, req.ToPurchaseInput(att))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

func (h *PurchaseHandler) DeletePayment(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.ParamID(c, "paymentId")
	if !ok {
		return
	}
	if err := h.service.DeletePayment(c.Request.Context(), invoiceID, paymentID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// GetAttachment streams the stored payment proof.
func (h *PurchaseHandler) GetAttachment(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.ParamID(c, "paymentId")
	if !ok {
		return
	}
	a, err := h.service.GetAttachment(c.Request.Context(), invoiceID, paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.File(c, a.Name, a.ContentType, a.Data)
}

// --- Stock ---

func (h *PurchaseHandler) Available(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	qty, err := h.service.AvailableQuantity(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AvailableQuantityResponse{InvoiceID: invoiceID, AvailableQuantity: qty})
}

func (h *PurchaseHandler) ProductQuantities(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	items, err := h.service.ProductQuantities(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []purchase.ProductQuantity{}
	}
	h.OK(c, gin.H{"items": items})
}
