package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("lease_id", "456"),
		attribute.String("type", "late_payment"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("org_id"), attrs[0].Key)
	assert.Equal(t, attribute.Key("type"), attrs[1].Key)
}

func TestInstrumentsOnNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLifecycle(ctx, "create_lease", "ok")
	m.RecordAlertCreated(ctx, "late_payment")
	m.RecordAlertRetired(ctx, "late_payment")
	m.RecordAlertSubjectFailure(ctx, "lease_ending", "store_unavailable")
	m.RecordAuditFailure(ctx, "create_lease")
	m.ObserveEvaluation(ctx, time.Second)

	var nilMetrics *Metrics
	nilMetrics.RecordLifecycle(ctx, "create_lease", "ok")
}

func TestHTTPMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/leases/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leases/9", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/leases/:id", "404")))
}
