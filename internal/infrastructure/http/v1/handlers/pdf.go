package handlers

import (
	"github.com/gin-gonic/gin"

	"produceledger/internal/infrastructure/pdf"
)

// PDFHandler serves printable invoices.
type PDFHandler struct {
	*BaseHandler
	invoices *pdf.Invoices
}

func NewPDFHandler(base *BaseHandler, invoices *pdf.Invoices) *PDFHandler {
	return &PDFHandler{BaseHandler: base, invoices: invoices}
}

func (h *PDFHandler) PurchaseInvoice(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.invoices.PurchaseInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.File(c, doc.FileName, "application/pdf", doc.Data)
}

func (h *PDFHandler) SalesInvoice(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.invoices.SalesInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.File(c, doc.FileName, "application/pdf", doc.Data)
}
