package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"produceledger/internal/core/apperror"
	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/tenant"
	"produceledger/pkg/logger"
)

// Client enqueues tasks and reports on them.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// EnqueueImport queues a CSV import for the tenant and user in ctx and returns the task ID.
func (c *Client) EnqueueImport(ctx context.Context, fileName string, csv []byte) (string, error) {
	p := ImportPurchasesPayload{TenantID: tenant.GetTenantID(ctx), FileName: fileName, CSV: csv}
	if u := appctx.GetUser(ctx); u != nil {
		p.UserID, p.Email, p.Role = u.UserID, u.Email, u.Role
	}
	task, err := NewImportPurchasesTask(p)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", apperror.NewInternal(err).WithDetail("task", TypeImportPurchases)
	}
	logger.Info(ctx, "purchase import queued", "task_id", info.ID, "file", fileName, "bytes", len(csv))
	return info.ID, nil
}

// EnqueueRender queues a PDF pre-render. Failures are logged; the PDF is
// rendered on demand anyway.
func (c *Client) EnqueueRender(ctx context.Context, kind string, p RenderInvoicePayload) {
	p.Kind = kind
	if p.TenantID == "" {
		p.TenantID = tenant.GetTenantID(ctx)
	}
	task, err := NewRenderInvoiceTask(p)
	if err == nil {
		_, err = c.client.EnqueueContext(ctx, task)
	}
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Warn(ctx, "pdf render not queued", "kind", kind, "invoice_id", p.InvoiceID, "error", err)
	}
}

// TaskStatus is the client view of a queued task.
type TaskStatus struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	State       string          `json:"state"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Status reports an import task of the tenant in ctx. Tasks of other tenants
// are reported as not found.
func (c *Client) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	info, err := c.inspector.GetTaskInfo(QueueDefault, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, apperror.NewNotFound("task", taskID)
		}
		return nil, apperror.NewInternal(err)
	}
	var owner struct {
		TenantID string `json:"tenantId"`
	}
	if err := json.Unmarshal(info.Payload, &owner); err != nil || owner.TenantID != tenant.GetTenantID(ctx) {
		return nil, apperror.NewNotFound("task", taskID)
	}
	return statusOf(info), nil
}

func statusOf(info *asynq.TaskInfo) *TaskStatus {
	s := &TaskStatus{
		ID:    info.ID,
		Type:  info.Type,
		State: info.State.String(),
		Error: info.LastErr,
	}
	if len(info.Result) > 0 {
		s.Result = json.RawMessage(info.Result)
	}
	if !info.CompletedAt.IsZero() {
		at := info.CompletedAt
		s.CompletedAt = &at
	}
	return s
}
