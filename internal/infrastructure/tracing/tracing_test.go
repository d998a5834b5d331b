package tracing

import (
	"context"
	"testing"

	"github.com/hilthontt/tenantwire/internal/infrastructure/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), configs.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewExporterRejectsUnknown(t *testing.T) {
	_, err := newExporter(context.Background(), configs.TracingConfig{Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unknown tracing exporter")
}

func TestNewExporterBuildsJaeger(t *testing.T) {
	exp, err := newExporter(context.Background(), configs.TracingConfig{
		Exporter: "jaeger",
		Endpoint: "http://localhost:14268/api/traces",
	})
	require.NoError(t, err)
	assert.NoError(t, exp.Shutdown(context.Background()))
}
