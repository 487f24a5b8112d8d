package observability

import (
	"testing"

	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		AppVersion:  "1.2.0",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "info",
			OTLPEnabled:   true,
			OTLPEndpoint:  "collector:4317",
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, "rentflow", cfg.ServiceName)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())

	parts := split(cfg)
	assert.True(t, parts.Tracing.Enabled)
	assert.Equal(t, "1.2.0", parts.Tracing.ServiceVersion)
	assert.False(t, parts.Logger.IncludeStackOnError)
}

func TestDebugEnvironments(t *testing.T) {
	assert.True(t, Config{Environment: "test"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
