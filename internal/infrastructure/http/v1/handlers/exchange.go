package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"produceledger/internal/core/apperror"
	"produceledger/internal/domain/exchange"
	"produceledger/internal/infrastructure/http/v1/dto"
	"produceledger/internal/infrastructure/jobs"
	"produceledger/internal/infrastructure/metrics"
	"produceledger/pkg/logger"
)

// MaxImportSize bounds an uploaded CSV.
const MaxImportSize = 10 << 20

// ImportQueue hands imports to the background worker.
type ImportQueue interface {
	EnqueueImport(ctx context.Context, fileName string, csv []byte) (string, error)
	Status(ctx context.Context, taskID string) (*jobs.TaskStatus, error)
}

// ExchangeHandler serves CSV import and export.
type ExchangeHandler struct {
	*BaseHandler
	importer *exchange.Importer
	exporter *exchange.Exporter
	queue    ImportQueue
	metrics  *metrics.Metrics
}

// NewExchangeHandler creates the handler. A nil queue disables async imports
// and nil metrics skips import counters.
func NewExchangeHandler(base *BaseHandler, importer *exchange.Importer, exporter *exchange.Exporter, queue ImportQueue, m *metrics.Metrics) *ExchangeHandler {
	return &ExchangeHandler{BaseHandler: base, importer: importer, exporter: exporter, queue: queue, metrics: m}
}

// upload returns the CSV from a multipart "file" part or from a text/csv body.
func (h *ExchangeHandler) upload(c *gin.Context) (string, []byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImportSize+(1<<20))

	name := "upload.csv"
	var r io.Reader
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			h.Error(c, apperror.NewValidation("unreadable file").WithCause(err))
			return "", nil, false
		}
		defer f.Close()
		name, r = fh.Filename, f
	} else {
		r = c.Request.Body
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		h.Error(c, apperror.NewValidation("unreadable file").WithCause(err))
		return "", nil, false
	}
	if len(data) > MaxImportSize {
		h.Error(c, apperror.NewValidation(fmt.Sprintf("file must be at most %d MB", MaxImportSize>>20)))
		return "", nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		h.Error(c, apperror.NewValidation("file is empty").WithDetail("field", "file"))
		return "", nil, false
	}
	return name, data, true
}

// ImportPurchases handles POST /import/purchase-invoices and returns the result inline.
func (h *ExchangeHandler) ImportPurchases(c *gin.Context) {
	_, data, ok := h.upload(c)
	if !ok {
		return
	}
	res, err := h.importer.ImportPurchases(c.Request.Context(), bytes.NewReader(data))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.metrics.ObserveImport(res.SuccessCount, res.ErrorCount)
	h.OK(c, res)
}

// ImportPurchasesAsync handles POST /import/purchase-invoices/async.
func (h *ExchangeHandler) ImportPurchasesAsync(c *gin.Context) {
	if h.queue == nil {
		h.Error(c, apperror.NewFeatureDisabled("background import"))
		return
	}
	name, data, ok := h.upload(c)
	if !ok {
		return
	}
	taskID, err := h.queue.EnqueueImport(c.Request.Context(), name, data)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ImportAcceptedResponse{
		TaskID:    taskID,
		StatusURL: "/api/v1/import/tasks/" + taskID,
	})
}

// TaskStatus handles GET /import/tasks/:taskId.
func (h *ExchangeHandler) TaskStatus(c *gin.Context) {
	if h.queue == nil {
		h.Error(c, apperror.NewNotFound("import task", c.Param("taskId")))
		return
	}
	st, err := h.queue.Status(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// ExportPurchases handles GET /export/purchase-invoices.csv.
func (h *ExchangeHandler) ExportPurchases(c *gin.Context) {
	h.export(c, "purchase-invoices", h.exporter.ExportPurchases)
}

// ExportSales handles GET /export/sales-invoices.csv.
func (h *ExchangeHandler) ExportSales(c *gin.Context) {
	h.export(c, "sales-invoices", h.exporter.ExportSales)
}

func (h *ExchangeHandler) export(c *gin.Context, name string, write func(context.Context, io.Writer, exchange.ExportFilter) error) {
	var q dto.RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	fileName := fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := write(c.Request.Context(), c.Writer, q.ToExportFilter()); err != nil {
		if !c.Writer.Written() {
			c.Header("Content-Disposition", "")
			h.Error(c, err)
			return
		}
		// headers are gone; the truncated file is all the client gets
		logger.Error(c.Request.Context(), "export aborted", "export", name, "error", err)
	}
}
