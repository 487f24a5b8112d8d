package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the domain instruments: lifecycle transitions, alert churn and audit health.
type Metrics struct {
	lifecycleOps     metric.Int64Counter
	alertsCreated    metric.Int64Counter
	alertsRetired    metric.Int64Counter
	alertFailures    metric.Int64Counter
	auditFailures    metric.Int64Counter
	evaluationLength metric.Float64Histogram
}

// NewProvider installs the global meter provider. When disabled it installs a noop provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New builds the domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rentflow"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	if m.lifecycleOps, err = meter.Int64Counter("rentflow_lifecycle_operations_total"); err != nil {
		return nil, err
	}
	if m.alertsCreated, err = meter.Int64Counter("rentflow_alerts_created_total"); err != nil {
		return nil, err
	}
	if m.alertsRetired, err = meter.Int64Counter("rentflow_alerts_retired_total"); err != nil {
		return nil, err
	}
	if m.alertFailures, err = meter.Int64Counter("rentflow_alert_subject_failures_total"); err != nil {
		return nil, err
	}
	if m.auditFailures, err = meter.Int64Counter("rentflow_audit_write_failures_total"); err != nil {
		return nil, err
	}
	if m.evaluationLength, err = meter.Float64Histogram("rentflow_alert_evaluation_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordLifecycle counts a lifecycle operation (create_lease, record_payment, ...) by outcome.
func (m *Metrics) RecordLifecycle(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.lifecycleOps.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordAlertCreated(ctx context.Context, alertType string) {
	if m == nil {
		return
	}
	m.alertsCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("type", alertType))...))
}

func (m *Metrics) RecordAlertRetired(ctx context.Context, alertType string) {
	if m == nil {
		return
	}
	m.alertsRetired.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("type", alertType))...))
}

func (m *Metrics) RecordAlertSubjectFailure(ctx context.Context, alertType, reason string) {
	if m == nil {
		return
	}
	m.alertFailures.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("type", alertType),
		attribute.String("reason", reason),
	)...))
}

func (m *Metrics) RecordAuditFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("operation", operation))...))
}

func (m *Metrics) ObserveEvaluation(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluationLength.Record(ctx, d.Seconds())
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"operation":   {},
	"outcome":     {},
	"type":        {},
	"reason":      {},
	"org_id":      {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes keeps only allowlisted label keys. Entity ids never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
