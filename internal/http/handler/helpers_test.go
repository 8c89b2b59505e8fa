package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/testutil"
	"github.com/stretchr/testify/require"
)

// newRequest builds a request scoped to ctx, with an optional JSON body and {id} route parameter
func newRequest(ctx context.Context, method, target, body, id string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

// tenantCtx is the context the tenant filter produces for an owner of tenant
func tenantCtx(tenant *domain.Tenant) context.Context {
	ctx := testutil.TenantContext(tenant)
	return auth.WithTenantFilter(ctx, &auth.TenantFilter{TenantID: tenant.ID})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	return decode[domain.APIError](t, w)
}
