package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "zeelink-test", Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	span, ctx := NewSpan(context.Background(), "store.test")
	require.NotNil(t, ctx)
	span.SetError(errors.New("boom"))
	span.End()
}

func TestTrackQuery_ObservesLatency(t *testing.T) {
	before := testutil.CollectAndCount(DatabaseQueryLatency)
	done := TrackQuery("select", "observability_test")
	done()
	assert.Equal(t, before+1, testutil.CollectAndCount(DatabaseQueryLatency))
}

func TestStoreMutations_Counter(t *testing.T) {
	StoreMutations.WithLabelValues("vote_question", "applied").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(StoreMutations.WithLabelValues("vote_question", "applied")))
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "zeelink-test", Enabled: true, Exporter: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown tracing exporter")
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", samplerFor(0).Description())
	assert.Equal(t, "AlwaysOnSampler", samplerFor(1).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestStartRemoteCall(t *testing.T) {
	span, ctx := StartRemoteCall(context.Background(), "profiles", "update")
	require.NotNil(t, ctx)
	span.SetError(nil)
	span.End()
}
