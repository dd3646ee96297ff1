package jobs

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/id"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/exchange"
	"produceledger/internal/infrastructure/metrics"
	"produceledger/internal/infrastructure/pdf"
	"produceledger/pkg/logger"
)

type recordingImporter struct {
	csv  string
	user *appctx.UserContext
	tid  string
}

func (r *recordingImporter) ImportPurchases(ctx context.Context, in io.Reader) (*exchange.ImportResult, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	r.csv = string(raw)
	r.user = appctx.GetUser(ctx)
	r.tid = tenant.GetTenantID(ctx)
	return &exchange.ImportResult{Rows: 2, SuccessCount: 1, ErrorCount: 1}, nil
}

type recordingRenderer struct {
	purchases, sales []id.ID
}

func (r *recordingRenderer) PurchaseInvoice(_ context.Context, invoiceID id.ID) (*pdf.Document, error) {
	r.purchases = append(r.purchases, invoiceID)
	return &pdf.Document{}, nil
}

func (r *recordingRenderer) SalesInvoice(_ context.Context, invoiceID id.ID) (*pdf.Document, error) {
	r.sales = append(r.sales, invoiceID)
	return &pdf.Document{}, nil
}

type binder struct {
	bound    []string
	released int
	fail     error
}

func (b *binder) bind(ctx context.Context, tenantID string) (context.Context, func(), error) {
	if b.fail != nil {
		return nil, nil, b.fail
	}
	b.bound = append(b.bound, tenantID)
	return tenant.WithTenant(ctx, &tenant.Tenant{ID: tenantID}), func() { b.released++ }, nil
}

func newHandlers() (*Handlers, *binder, *recordingImporter, *recordingRenderer) {
	b := &binder{}
	imp := &recordingImporter{}
	r := &recordingRenderer{}
	return NewHandlers(b.bind, imp, r, metrics.New(), logger.Default()), b, imp, r
}

func TestHandleImportPurchases(t *testing.T) {
	h, b, imp, _ := newHandlers()
	task, err := NewImportPurchasesTask(ImportPurchasesPayload{
		TenantID: "t-1",
		UserID:   "u-1",
		Role:     appctx.RoleStaff,
		FileName: "lots.csv",
		CSV:      []byte("date,vendor\n"),
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleImportPurchases(context.Background(), task))
	assert.Equal(t, []string{"t-1"}, b.bound)
	assert.Equal(t, 1, b.released)
	assert.Equal(t, "date,vendor\n", imp.csv)
	assert.Equal(t, "t-1", imp.tid)
	require.NotNil(t, imp.user)
	assert.Equal(t, "u-1", imp.user.UserID)
}

func TestHandleImportPurchases_BadPayloadSkipsRetry(t *testing.T) {
	h, _, _, _ := newHandlers()
	err := h.HandleImportPurchases(context.Background(), asynq.NewTask(TypeImportPurchases, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleImportPurchases_TenantUnavailable(t *testing.T) {
	h, b, imp, _ := newHandlers()
	b.fail = tenant.ErrTenantNotActive
	task, err := NewImportPurchasesTask(ImportPurchasesPayload{TenantID: "t-1"})
	require.NoError(t, err)

	err = h.HandleImportPurchases(context.Background(), task)
	assert.ErrorIs(t, err, tenant.ErrTenantNotActive)
	assert.Empty(t, imp.csv)
}

func TestHandleRenderInvoice(t *testing.T) {
	h, _, _, r := newHandlers()
	invoiceID := id.New()

	task, err := NewRenderInvoiceTask(RenderInvoicePayload{TenantID: "t-1", Kind: KindSales, InvoiceID: invoiceID})
	require.NoError(t, err)
	require.NoError(t, h.HandleRenderInvoice(context.Background(), task))
	assert.Equal(t, []id.ID{invoiceID}, r.sales)
	assert.Empty(t, r.purchases)
}

func TestNewTasks_Validate(t *testing.T) {
	_, err := NewImportPurchasesTask(ImportPurchasesPayload{})
	assert.Error(t, err)
	_, err = NewRenderInvoiceTask(RenderInvoicePayload{TenantID: "t-1", Kind: "credit-note"})
	assert.Error(t, err)

	task, err := NewRenderInvoiceTask(RenderInvoicePayload{TenantID: "t-1", Kind: KindPurchase, InvoiceID: id.New()})
	require.NoError(t, err)
	var p RenderInvoicePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, KindPurchase, p.Kind)
}

func TestStatusOf(t *testing.T) {
	info := &asynq.TaskInfo{
		ID:      "abc",
		Type:    TypeImportPurchases,
		State:   asynq.TaskStateCompleted,
		Result:  []byte(`{"successCount":1}`),
		LastErr: "",
	}
	s := statusOf(info)
	assert.Equal(t, "completed", s.State)
	assert.JSONEq(t, `{"successCount":1}`, string(s.Result))
	assert.Nil(t, s.CompletedAt)
}
