package handlers

import (
	"github.com/gin-gonic/gin"

	"produceledger/internal/domain/documents/sales"
	"produceledger/internal/domain/lots"
	"produceledger/internal/infrastructure/http/v1/dto"
)

// SalesHandler serves sales invoices with their lines, payments and lot allocations.
type SalesHandler struct {
	*BaseHandler
	service *sales.Service
	ledger  *lots.Ledger
}

func NewSalesHandler(base *BaseHandler, service *sales.Service, ledger *lots.Ledger) *SalesHandler {
	return &SalesHandler{BaseHandler: base, service: service, ledger: ledger}
}

func (h *SalesHandler) List(c *gin.Context) {
	var q dto.SalesListQuery
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

func (h *SalesHandler) Get(c *gin.Context) {
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

func (h *SalesHandler) Create(c *gin.Context) {
	var req dto.CreateSalesRequest
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

func (h *SalesHandler) Update(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SalesHeaderRequest
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

func (h *SalesHandler) Delete(c *gin.Context) {
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

// Finalize handles POST /sales-invoices/:id/finalize.
func (h *SalesHandler) Finalize(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Finalize(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// --- Lines ---

func (h *SalesHandler) AddLine(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SalesLineRequest
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

func (h *SalesHandler) UpdateLine(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamID(c, "lineId")
	if !ok {
		return
	}
	var req dto.SalesLineRequest
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

func (h *SalesHandler) DeleteLine(c *gin.Context) {
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

func (h *SalesHandler) RecordPayment(c *gin.Context) {
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
	p, err := h.service.RecordPayment(c.Request.Context(), invoiceID, req.ToSalesInput(att))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

func (h *SalesHandler) UpdatePayment(c *gin.Context) {
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
	p, err := h.service.UpdatePayment(c.Request.Context(), invoiceID, paymentID, req.ToSalesInput(att))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

func (h *SalesHandler) DeletePayment(c *gin.Context) {
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

func (h *SalesHandler) GetAttachment(c *gin.Context) {
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

// --- Lot allocations ---

func (h *SalesHandler) ListLots(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	items, err := h.ledger.ListAllocations(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []*lots.Allocation{}
	}
	h.OK(c, gin.H{"items": items})
}

func (h *SalesHandler) AllocateLot(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AllocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.ledger.Allocate(c.Request.Context(), invoiceID, req.PurchaseInvoiceID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, a)
}

func (h *SalesHandler) UpdateLot(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	allocationID, ok := h.ParamID(c, "lotId")
	if !ok {
		return
	}
	var req dto.AllocationUpdateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.ledger.UpdateAllocation(c.Request.Context(), invoiceID, allocationID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

func (h *SalesHandler) RemoveLot(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	allocationID, ok := h.ParamID(c, "lotId")
	if !ok {
		return
	}
	if err := h.ledger.RemoveAllocation(c.Request.Context(), invoiceID, allocationID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
