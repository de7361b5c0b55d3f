package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("daedalus", "1.2.3")
	assert.Equal(t, "daedalus", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestSetup(t *testing.T) {
	_, err := Setup(t.Context(), Config{ServiceName: "daedalus"}, nil)
	assert.ErrorContains(t, err, "endpoint is required")

	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	// The exporter connects lazily, so setup succeeds without a collector.
	shutdown, err := Setup(t.Context(), DefaultConfig("daedalus", "test"), nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, Shutdown(shutdown, nil))

	assert.NoError(t, Shutdown(nil, nil))
}
