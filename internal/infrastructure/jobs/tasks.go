// Package jobs runs slow tenant work (CSV imports, PDF pre-rendering) on asynq.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"produceledger/internal/core/id"
)

const (
	QueueDefault = "default"

	TypeImportPurchases = "exchange:import_purchases"
	TypeRenderInvoice   = "pdf:render_invoice"

	// ResultRetention keeps finished import results readable by the status endpoint.
	ResultRetention = 24 * time.Hour
)

// Invoice kinds a render task can target.
const (
	KindPurchase = "purchase"
	KindSales    = "sales"
)

// ImportPurchasesPayload carries an uploaded CSV and the user who sent it.
type ImportPurchasesPayload struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FileName string `json:"fileName"`
	CSV      []byte `json:"csv"`
}

// RenderInvoicePayload names the invoice to pre-render.
type RenderInvoicePayload struct {
	TenantID  string `json:"tenantId"`
	Kind      string `json:"kind"`
	InvoiceID id.ID  `json:"invoiceId"`
}

func NewImportPurchasesTask(p ImportPurchasesPayload) (*asynq.Task, error) {
	if p.TenantID == "" {
		return nil, fmt.Errorf("import task: tenant is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImportPurchases, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Retention(ResultRetention),
		asynq.Timeout(10*time.Minute),
	), nil
}

func NewRenderInvoiceTask(p RenderInvoicePayload) (*asynq.Task, error) {
	if p.Kind != KindPurchase && p.Kind != KindSales {
		return nil, fmt.Errorf("render task: unknown invoice kind %q", p.Kind)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRenderInvoice, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		// a burst of edits to one invoice renders it once
		asynq.Unique(time.Minute),
	), nil
}
