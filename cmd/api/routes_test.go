package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/calls"
	"voicedesk/internal/campaigns"
	"voicedesk/internal/config"
	"voicedesk/internal/httpapi"
	"voicedesk/internal/records"
	"voicedesk/internal/reporting"
	"voicedesk/internal/telephony"
	"voicedesk/internal/tenants"
	"voicedesk/internal/webhooks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) PlaceBatchCalls(_ context.Context, req telephony.BatchCallRequest) ([]telephony.PlacedCall, error) {
	out := make([]telephony.PlacedCall, len(req.Customers))
	for i, c := range req.Customers {
		out[i] = telephony.PlacedCall{ProviderCallID: fmt.Sprintf("vapi-%d", i), CustomerNumber: c.Number}
	}
	return out, nil
}

func (stubProvider) EndCall(context.Context, string) error { return nil }

type testAPI struct {
	t       *testing.T
	engine  *gin.Engine
	records *records.MemoryRepo
	audit   *audit.MemoryRepo
}

func newTestAPI(t *testing.T, health func(context.Context) error) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	tenantRepo := tenants.NewMemoryRepo()
	tenantRepo.PutProfile(tenants.Profile{ID: "t1", Email: "dueno@taqueria.mx", PasswordHash: string(hash), Industry: tenants.IndustryRestaurant, Role: "user"})
	tenantRepo.PutProfile(tenants.Profile{ID: "t2", Email: "otro@taqueria.mx", PasswordHash: string(hash), Industry: tenants.IndustryRestaurant, Role: "user"})
	tenantRepo.PutProfile(tenants.Profile{ID: "root", Email: "admin@voicedesk.mx", PasswordHash: string(hash), Role: "admin"})
	tenantRepo.PutPlan(tenants.Plan{ID: "pro", Name: "Pro", Active: true})

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "test", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	require.NoError(t, err)

	auditRepo := audit.NewMemoryRepo()
	auditSvc := audit.NewService(auditRepo)
	tenantSvc := tenants.NewService(tenantRepo, auditSvc)
	recordRepo := records.NewMemoryRepo()
	recordSvc := records.NewService(recordRepo)
	campaignSvc := campaigns.NewService(campaigns.NewMemoryRepo(), stubProvider{}, campaigns.Options{Audit: auditSvc})

	h := httpapi.Handlers{
		Auth:      auth.NewService(m, tenantSvc),
		Tenants:   tenantSvc,
		Campaigns: campaignSvc,
		Records:   recordSvc,
		Reports:   reporting.NewService(reporting.NewMemoryRepo()),
		Webhooks:  webhooks.NewClassifier(campaignSvc, tenantSvc, recordSvc, calls.NewMemoryRepo(), nil),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testAPI{
		t:       t,
		engine:  newRouter(log, h, auth.RequireAccessToken(m), health),
		records: recordRepo,
		audit:   auditRepo,
	}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(email string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "s3cret"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, nil)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "", nil).Code)

	down := newTestAPI(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestAuthAndRoles(t *testing.T) {
	api := newTestAPI(t, nil)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "dueno@taqueria.mx", "password": "nope"}).Code)

	user := api.login("dueno@taqueria.mx")
	w := api.do(http.MethodGet, "/v1/me", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, "t1", me["id"])
	assert.NotContains(t, me, "password_hash")

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/v1/admin/users", user, nil).Code)

	admin := api.login("admin@voicedesk.mx")
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/admin/plans", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPatch, "/v1/admin/users/t2", admin, map[string]string{"role": "owner"}).Code)

	w = api.do(http.MethodPatch, "/v1/admin/users/t2", admin, map[string]string{"plan_id": "pro"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	events := api.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "root", events[0].ActorUserID)
	assert.NotEmpty(t, events[0].IPAddress)
}

func TestPatchMe_RejectsUnknownIndustry(t *testing.T) {
	api := newTestAPI(t, nil)
	user := api.login("dueno@taqueria.mx")

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPatch, "/v1/me", user, map[string]string{"industry": "bakery"}).Code)
	w := api.do(http.MethodPatch, "/v1/me", user, map[string]string{"business_name": "El Güero"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "El Güero", decode(t, w)["business_name"])
}

func TestOrders_TenantScoped(t *testing.T) {
	api := newTestAPI(t, nil)
	t1 := api.login("dueno@taqueria.mx")
	t2 := api.login("otro@taqueria.mx")

	w := api.do(http.MethodPost, "/v1/pedidos", t1, map[string]any{
		"cliente_nombre": "Ana",
		"items":          []map[string]any{{"nombre": "taco", "cantidad": 4, "precio_unitario": 25}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode(t, w)
	assert.Equal(t, 100.0, order["total"])
	assert.Equal(t, "recibido", order["estado"])
	id := order["id"].(string)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/pedidos/"+id, t2, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/v1/pedidos/"+id, t2, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPatch, "/v1/pedidos/"+id, t1, map[string]string{"estado": "perdido"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/pedidos?from=ayer", t1, nil).Code)

	w = api.do(http.MethodPatch, "/v1/pedidos/"+id, t1, map[string]string{"estado": "listo"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "listo", decode(t, w)["estado"])

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/v1/pedidos/"+id, t1, nil).Code)
	assert.Empty(t, api.records.Orders())
}

func TestReservations_Create(t *testing.T) {
	api := newTestAPI(t, nil)
	user := api.login("dueno@taqueria.mx")

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/v1/reservaciones", user, map[string]any{"nombre_cliente": "Luis"}).Code)

	w := api.do(http.MethodPost, "/v1/reservaciones", user, map[string]any{"nombre_cliente": "Luis", "fecha": "2025-02-14", "hora": "21:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	r := decode(t, w)
	assert.Equal(t, 2.0, r["numero_personas"])
	assert.Equal(t, "pendiente", r["estado"])
}

func TestCampaignAndWebhookFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	user := api.login("dueno@taqueria.mx")

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/v1/campaigns", user, map[string]any{"name": "x"}).Code)

	w := api.do(http.MethodPost, "/v1/campaigns", user, map[string]any{
		"name":            "Promo",
		"assistant_id":    "asst-1",
		"phone_number_id": "pn-1",
		"recipients":      []map[string]string{{"phone_number": "5511112222"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	report := `{"message":{"type":"end-of-call-report","endedReason":"customer-ended-call",
	  "analysis":{"structuredData":{"tipo":"pedido","items":[{"nombre":"pizza","cantidad":1,"precio_unitario":180}]}},
	  "call":{"id":"vapi-0"}}}`
	w = api.do(http.MethodPost, "/webhooks/vapi", "", report)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"ok": true}, decode(t, w))

	w = api.do(http.MethodGet, "/v1/campaigns/"+id, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Equal(t, "completed", detail["status"])
	assert.Equal(t, 1.0, detail["completed_calls"])

	orders := api.records.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "+525511112222", orders[0].ClienteTelefono)

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/v1/campaigns/"+id+"/cancel", user, nil).Code)

	w = api.do(http.MethodGet, "/v1/campaigns/"+id+"/export", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
}

func TestWebhook_Rejections(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodPost, "/webhooks/vapi", "", `{"nope":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["ok"])

	w = api.do(http.MethodPost, "/webhooks/vapi", "", `{"message":{"type":"end-of-call-report","call":{"id":"stranger"},"phoneNumber":{"number":"+14155550000"}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/webhooks/vapi", "", `{"message":{"type":"hang"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReportSummary(t *testing.T) {
	api := newTestAPI(t, nil)
	user := api.login("dueno@taqueria.mx")

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/reports/summary?from=2025-01-01&to=2025-01-31", user, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/reports/summary?from=2025-02-01&to=2025-01-01", user, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/reports/campaigns/nope", user, nil).Code)
}
