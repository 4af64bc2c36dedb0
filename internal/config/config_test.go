package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadTelemetryDefaults(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "OTEL_SAMPLING_RATIO",
	} {
		t.Setenv(key, "")
	}

	tel := Load().Telemetry
	assert.Equal(t, "info", tel.LogLevel)
	assert.Equal(t, "json", tel.LogFormat)
	assert.False(t, tel.OTLPEnabled)
	assert.Equal(t, "grpc", tel.OTLPProtocol)
	assert.InDelta(t, 0.1, tel.SampleRatio, 1e-9)
}

func TestLoadTelemetryOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4318 ")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP/protobuf")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	tel := Load().Telemetry
	assert.Equal(t, "debug", tel.LogLevel)
	assert.Equal(t, "console", tel.LogFormat)
	assert.True(t, tel.OTLPEnabled)
	assert.Equal(t, "collector:4318", tel.OTLPEndpoint)
	assert.Equal(t, "http/protobuf", tel.OTLPProtocol)
	assert.InDelta(t, 0.5, tel.SampleRatio, 1e-9)
}

func TestLoadTelemetryKeepsDefaultsOnBadValues(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "sometimes")
	t.Setenv("OTEL_SAMPLING_RATIO", "1.5")

	tel := Load().Telemetry
	assert.False(t, tel.OTLPEnabled)
	assert.InDelta(t, 0.1, tel.SampleRatio, 1e-9)
}

func TestDebugLogging(t *testing.T) {
	assert.True(t, Config{Environment: "production", Telemetry: TelemetryConfig{LogLevel: "debug"}}.DebugLogging())
	assert.True(t, Config{Environment: "Local", Telemetry: TelemetryConfig{LogLevel: "info"}}.DebugLogging())
	assert.False(t, Config{Environment: "production", Telemetry: TelemetryConfig{LogLevel: "info"}}.DebugLogging())
}
