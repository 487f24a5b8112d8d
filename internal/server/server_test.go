package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentflow/internal/alert"
	auditrepo "github.com/smallbiznis/rentflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/rentflow/internal/audit/service"
	"github.com/smallbiznis/rentflow/internal/calendar"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/dashboard"
	"github.com/smallbiznis/rentflow/internal/events"
	lifecyclerepo "github.com/smallbiznis/rentflow/internal/lifecycle/repository"
	lifecycleservice "github.com/smallbiznis/rentflow/internal/lifecycle/service"
	"github.com/smallbiznis/rentflow/internal/lock"
	notificationrepo "github.com/smallbiznis/rentflow/internal/notification/repository"
	notificationservice "github.com/smallbiznis/rentflow/internal/notification/service"
	"github.com/smallbiznis/rentflow/internal/observability"
	propertyrepo "github.com/smallbiznis/rentflow/internal/property/repository"
	propertyservice "github.com/smallbiznis/rentflow/internal/property/service"
	"github.com/smallbiznis/rentflow/internal/receipt"
	"github.com/smallbiznis/rentflow/internal/reminder"
	tenantrepo "github.com/smallbiznis/rentflow/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/rentflow/internal/tenant/service"
	"github.com/smallbiznis/rentflow/internal/testutil"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const ownerHeader = "1"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.NewDB(t)
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	locker := lock.NewLocal()
	publisher := events.NewNoop(log)

	ar := auditrepo.Provide()
	recorder := auditservice.NewRecorder(auditservice.RecorderParams{DB: db, Log: log, GenID: node, Clock: fake, Repo: ar})
	properties := propertyrepo.Provide()
	tenants := tenantrepo.Provide()
	leases := lifecyclerepo.Provide()
	notifications := notificationrepo.Provide()

	coordinator := lifecycleservice.New(lifecycleservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: leases,
		PropertyRepo: properties, TenantRepo: tenants, Audit: recorder, Locker: locker,
	})
	settings := notificationservice.New(notificationservice.Params{
		DB: db, Log: log, Clock: fake, Repo: notifications,
		Defaults: config.NewStaticAlertDefaults(config.DefaultAlertDefaults()),
	})
	var cfg config.Config
	cfg.Scheduler.ReminderHour = 9

	return NewServer(ServerParams{
		Gin:   NewEngine(observability.Config{Environment: "test"}, nil),
		Log:   log,
		Clock: fake,
		PropertySvc: propertyservice.New(propertyservice.Params{
			DB: db, Log: log, GenID: node, Clock: fake, Repo: properties, Audit: recorder, Locker: locker,
		}),
		TenantSvc: tenantservice.New(tenantservice.Params{
			DB: db, Log: log, GenID: node, Clock: fake, Repo: tenants, Audit: recorder, Locker: locker,
		}),
		Coordinator:     coordinator,
		NotificationSvc: settings,
		AuditSvc:        auditservice.NewService(auditservice.Params{DB: db, Log: log, Repo: ar}),
		AlertEngine: alert.NewEngine(alert.Params{
			DB: db, Log: log, GenID: node, Leases: leases, Notifications: notifications,
			Settings: settings, Publisher: publisher,
		}),
		Calendar: calendar.NewProjector(calendar.Params{DB: db, Log: log, Repo: leases}),
		Dashboard: dashboard.NewService(dashboard.Params{
			DB: db, Log: log, Clock: fake, Properties: properties, Tenants: tenants, Leases: leases, Notifications: notifications,
		}),
		Reminders: reminder.NewService(reminder.Params{
			DB: db, Log: log, Clock: fake, Config: cfg, Leases: leases, Tenants: tenants,
			Settings: notifications, Publisher: publisher,
		}),
		Receipts: receipt.NewService(receipt.Params{Log: log, Coordinator: coordinator}),
	})
}

type response struct {
	Data  json.RawMessage `json:"data"`
	Error errorPayload    `json:"error"`
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrg, ownerHeader)
	req.Header.Set(HeaderActor, "owner@example.com")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func idOf(t *testing.T, resp response) string {
	t.Helper()
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	require.NotEmpty(t, v.ID)
	return v.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOwnerHeaderIsRequired(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/properties", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_organization"`)

	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.Header.Set(HeaderOrg, "not-a-number")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaseLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodPost, "/api/properties", gin.H{
		"name": "Rue Verte 12", "property_type": "apartment", "rent_amount": 80000, "charges": 5000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	propertyID := idOf(t, resp)

	rec, resp = do(t, s, http.MethodPost, "/api/tenants", gin.H{"first_name": "Ana", "last_name": "Lima"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tenantID := idOf(t, resp)

	rec, resp = do(t, s, http.MethodPost, "/api/tenants", gin.H{"first_name": "Bo", "last_name": "Chen"})
	require.Equal(t, http.StatusCreated, rec.Code)
	otherTenantID := idOf(t, resp)

	rec, resp = do(t, s, http.MethodPost, "/api/leases", gin.H{
		"property_id": propertyID, "tenant_id": tenantID, "start_date": "2024-01-01", "payment_day": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	leaseID := idOf(t, resp)

	rec, resp = do(t, s, http.MethodPost, "/api/leases", gin.H{
		"property_id": propertyID, "tenant_id": otherTenantID, "start_date": "2024-02-01",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "property_occupied", resp.Error.Code)

	rec, resp = do(t, s, http.MethodDelete, "/api/properties/"+propertyID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", resp.Error.Type)

	rec, _ = do(t, s, http.MethodPost, "/api/leases/"+leaseID+"/terminate", gin.H{"end_date": "2024-06-30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp = do(t, s, http.MethodGet, "/api/properties/"+propertyID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var property struct {
		IsOccupied bool `json:"is_occupied"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &property))
	assert.False(t, property.IsOccupied)

	rec, resp = do(t, s, http.MethodDelete, "/api/properties/"+propertyID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "property_has_leases", resp.Error.Code)

	rec, resp = do(t, s, http.MethodGet, "/api/vacancies?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var vacancies []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &vacancies))
	require.Len(t, vacancies, 1)
	assert.Equal(t, "lease terminated", vacancies[0]["reason"])

	rec, resp = do(t, s, http.MethodGet, "/api/audit-entries?entity_kind=lease&entity_id="+leaseID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	assert.Len(t, entries, 2)
}

func TestPaymentReceiptAndDashboard(t *testing.T) {
	s := newTestServer(t)

	_, resp := do(t, s, http.MethodPost, "/api/properties", gin.H{"name": "Quai Nord 3", "property_type": "studio", "rent_amount": 60000})
	propertyID := idOf(t, resp)
	_, resp = do(t, s, http.MethodPost, "/api/tenants", gin.H{"first_name": "Ana", "last_name": "Lima"})
	tenantID := idOf(t, resp)
	_, resp = do(t, s, http.MethodPost, "/api/leases", gin.H{"property_id": propertyID, "tenant_id": tenantID, "start_date": "2024-01-01"})
	leaseID := idOf(t, resp)

	rec, resp := do(t, s, http.MethodPost, "/api/payments", gin.H{
		"lease_id": leaseID, "amount": 60000, "payment_date": "2024-03-02", "period_month": 3, "period_year": 2024,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := idOf(t, resp)

	rec, resp = do(t, s, http.MethodPost, "/api/payments", gin.H{
		"lease_id": leaseID, "amount": 60000, "period_month": 3, "period_year": 2024,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "period_already_paid", resp.Error.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/payments/"+paymentID+"/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, receipt.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "quittance-quai-nord-3-2024-03.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec, _ = do(t, s, http.MethodGet, "/api/export/payments/excel?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, receipt.LedgerContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payments-2024.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec, resp = do(t, s, http.MethodGet, "/api/export/payments/excel?year=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_year", resp.Error.Code)

	rec, resp = do(t, s, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats dashboard.Stats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.ActiveLeases)
	assert.Equal(t, int64(60000), stats.CollectedThisMonth)
	assert.Zero(t, stats.PendingAmount)

	rec, resp = do(t, s, http.MethodGet, "/api/reminders/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	rec, resp = do(t, s, http.MethodGet, "/api/calendar?month=3&year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), fmt.Sprintf(`"id":"paid-%s"`, paymentID))
}

func TestEvaluateAndReenableRunsAlertPass(t *testing.T) {
	s := newTestServer(t)

	_, resp := do(t, s, http.MethodPost, "/api/properties", gin.H{"name": "Place Haute 7", "property_type": "house"})
	propertyID := idOf(t, resp)
	rec, _ := do(t, s, http.MethodPost, "/api/vacancies", gin.H{"property_id": propertyID, "start_date": "2024-01-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = do(t, s, http.MethodPut, "/api/notifications/settings", gin.H{"vacancy_alert_enabled": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = do(t, s, http.MethodPost, "/api/notifications/evaluate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = do(t, s, http.MethodGet, "/api/notifications", nil)
	assert.Contains(t, rec.Body.String(), `"unread_count":0`)

	rec, _ = do(t, s, http.MethodPut, "/api/notifications/settings", gin.H{"vacancy_alert_enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/notifications", nil)
	assert.Contains(t, rec.Body.String(), `"unread_count":1`)

	rec, _ = do(t, s, http.MethodPost, "/api/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":1`)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("invalid_date", "bad"), http.StatusBadRequest, "invalid_date"},
		{"not found", apperr.NotFound("lease_not_found", "missing"), http.StatusNotFound, "lease_not_found"},
		{"conflict", fmt.Errorf("create: %w", apperr.Conflict("tenant_housed", "housed")), http.StatusConflict, "tenant_housed"},
		{"unavailable", apperr.Unavailable(errors.New("conn reset")), http.StatusServiceUnavailable, "store_unavailable"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, payload.Code)
		})
	}
}
