package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/id"
	"produceledger/internal/domain/exchange"
	"produceledger/internal/infrastructure/metrics"
	"produceledger/internal/infrastructure/pdf"
	"produceledger/pkg/logger"
)

// TenantBinder returns ctx bound to the tenant database and a release func.
type TenantBinder func(ctx context.Context, tenantID string) (context.Context, func(), error)

type PurchaseImporter interface {
	ImportPurchases(ctx context.Context, r io.Reader) (*exchange.ImportResult, error)
}

type InvoiceRenderer interface {
	PurchaseInvoice(ctx context.Context, invoiceID id.ID) (*pdf.Document, error)
	SalesInvoice(ctx context.Context, invoiceID id.ID) (*pdf.Document, error)
}

// Handlers processes the task types of this package.
type Handlers struct {
	bind     TenantBinder
	importer PurchaseImporter
	renderer InvoiceRenderer
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewHandlers(bind TenantBinder, importer PurchaseImporter, renderer InvoiceRenderer, m *metrics.Metrics, log *logger.Logger) *Handlers {
	return &Handlers{bind: bind, importer: importer, renderer: renderer, metrics: m, log: log.WithComponent("jobs")}
}

// Register adds every handler to mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeImportPurchases, h.HandleImportPurchases)
	mux.HandleFunc(TypeRenderInvoice, h.HandleRenderInvoice)
}

func (h *Handlers) taskContext(ctx context.Context, t *asynq.Task, tenantID string) (context.Context, func(), error) {
	taskID, _ := asynq.GetTaskID(ctx)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(appctx.OriginJob, taskID))
	ctx = logger.WithLogger(ctx, h.log.With("task_type", t.Type(), "task_id", taskID))
	return h.bind(ctx, tenantID)
}

// HandleImportPurchases imports the CSV and stores the ImportResult as the task result.
func (h *Handlers) HandleImportPurchases(ctx context.Context, t *asynq.Task) error {
	var p ImportPurchasesPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode import payload: %v: %w", err, asynq.SkipRetry)
	}
	track := h.metrics.Track(TypeImportPurchases)

	ctx, release, err := h.taskContext(ctx, t, p.TenantID)
	if err != nil {
		return track.End(fmt.Errorf("bind tenant %s: %w", p.TenantID, err))
	}
	defer release()
	if p.UserID != "" {
		ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: p.UserID, TenantID: p.TenantID, Email: p.Email, Role: p.Role})
	}

	res, err := h.importer.ImportPurchases(ctx, bytes.NewReader(p.CSV))
	if err != nil {
		return track.End(err)
	}
	h.metrics.ObserveImport(res.SuccessCount, res.ErrorCount)

	if w := t.ResultWriter(); w != nil {
		raw, err := json.Marshal(res)
		if err != nil {
			return track.End(err)
		}
		if _, err := w.Write(raw); err != nil {
			return track.End(fmt.Errorf("write import result: %w", err))
		}
	}
	logger.Info(ctx, "queued purchase import done", "file", p.FileName, "imported", res.SuccessCount, "failed", res.ErrorCount)
	return track.End(nil)
}

// HandleRenderInvoice renders an invoice so the next download hits the cache.
func (h *Handlers) HandleRenderInvoice(ctx context.Context, t *asynq.Task) error {
	var p RenderInvoicePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode render payload: %v: %w", err, asynq.SkipRetry)
	}
	track := h.metrics.Track(TypeRenderInvoice)

	ctx, release, err := h.taskContext(ctx, t, p.TenantID)
	if err != nil {
		return track.End(fmt.Errorf("bind tenant %s: %w", p.TenantID, err))
	}
	defer release()

	switch p.Kind {
	case KindPurchase:
		_, err = h.renderer.PurchaseInvoice(ctx, p.InvoiceID)
	case KindSales:
		_, err = h.renderer.SalesInvoice(ctx, p.InvoiceID)
	default:
		err = fmt.Errorf("unknown invoice kind %q: %w", p.Kind, asynq.SkipRetry)
	}
	return track.End(err)
}
