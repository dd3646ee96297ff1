package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/app"
	appctx "produceledger/internal/core/context"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/auth"
	"produceledger/internal/infrastructure/http/v1/middleware"
	"produceledger/internal/infrastructure/metrics"
	"produceledger/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeMeta struct{ err error }

func (m fakeMeta) Ping(context.Context) error { return m.err }

type fakePools int

func (p fakePools) OpenPools() int { return int(p) }

type testEnv struct {
	router   http.Handler
	jwt      *auth.JWTService
	tenantID string
	released int
}

func newTestEnv(t *testing.T, settings tenant.Settings, meta fakeMeta) *testEnv {
	t.Helper()

	jwtCfg := auth.DefaultJWTConfig(testSecret)
	svc, err := app.NewServices(app.Deps{Rates: tenant.DefaultRates(), JWT: jwtCfg})
	require.NoError(t, err)

	env := &testEnv{jwt: svc.JWT, tenantID: uuid.NewString()}
	known := &tenant.Tenant{ID: env.tenantID, Status: tenant.StatusActive, Settings: settings}

	var bind middleware.TenantBinder = func(ctx context.Context, tenantID string) (context.Context, func(), error) {
		if tenantID != env.tenantID {
			return nil, nil, tenant.ErrTenantNotFound
		}
		return tenant.WithTenant(ctx, known), func() { env.released++ }, nil
	}

	env.router = NewRouter(RouterConfig{
		Bind:         bind,
		Meta:         meta,
		Pools:        fakePools(3),
		Logger:       logger.Default(),
		JWTValidator: svc.JWT,
		Services:     svc,
		Metrics:      metrics.New(),
	})
	return env
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := e.jwt.GenerateAccessToken(uuid.NewString(), e.tenantID, "clerk@example.com", role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, e.tenantID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	rec := env.do(http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/health/info", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tenant_pools":3`)
}

func TestHealth_MetaDown(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{err: errors.New("connection refused")})

	rec := env.do(http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})
	env.do(http.MethodGet, "/health/live", "", "")

	rec := env.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestTenantResolution(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.Header.Set(middleware.TenantHeader, "acme")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.Header.Set(middleware.TenantHeader, uuid.NewString())
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	rec := env.do(http.MethodGet, "/api/v1/products", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/products", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 2, env.released, "tenant pool is released after every request")
}

func TestAuthentication_OtherTenantToken(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	tok, _, err := env.jwt.GenerateAccessToken(uuid.NewString(), uuid.NewString(), "x@example.com", appctx.RoleAdmin)
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/v1/products", "", tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFeatureDisabled(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{Features: map[string]bool{tenant.FeatureSales: false}}, fakeMeta{})
	tok := env.token(t, appctx.RoleAdmin)

	rec := env.do(http.MethodGet, "/api/v1/sales-invoices", "", tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FEATURE_DISABLED", errorCode(t, rec))

	rec = env.do(http.MethodGet, "/api/v1/export/sales-invoices.csv", "", tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInvoiceDeleteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	rec := env.do(http.MethodDelete, "/api/v1/purchase-invoices/"+uuid.NewString(), "", env.token(t, appctx.RoleStaff))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	body := `{"email":"new@example.com","password":"longenough","role":"staff"}`
	rec := env.do(http.MethodPost, "/api/v1/auth/users", body, env.token(t, appctx.RoleStaff))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})
	tok := env.token(t, appctx.RoleStaff)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"product without name", http.MethodPost, "/api/v1/products", `{}`},
		{"bad product id", http.MethodGet, "/api/v1/products/42", ""},
		{"purchase line without product", http.MethodPost, "/api/v1/purchase-invoices", `{"vendorId":"` + uuid.NewString() + `","date":"2025-04-01","lines":[{}]}`},
		{"unknown payment mode", http.MethodPost, "/api/v1/sales-invoices/" + uuid.NewString() + "/payments", `{"amount":"10","date":"2025-04-01","paymentMode":"Barter"}`},
		{"bad dashboard date", http.MethodGet, "/api/v1/reports/dashboard?from=01-04-2025", ""},
		{"list limit too large", http.MethodGet, "/api/v1/vendors?limit=10000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body, tok)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		})
	}
}

func TestAsyncImportWithoutQueue(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	rec := env.do(http.MethodPost, "/api/v1/import/purchase-invoices/async", "invoice_number\n", env.token(t, appctx.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FEATURE_DISABLED", errorCode(t, rec))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, tenant.Settings{}, fakeMeta{})

	rec := env.do(http.MethodGet, "/api/v2/anything", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
