package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("store", "coop"),
		attribute.String("source_id", "7310865004703"),
		attribute.String("result", "ok"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("store"), attrs[0].Key)
	assert.Equal(t, attribute.Key("result"), attrs[1].Key)
}

func TestRecordCrawlRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{ServiceName: "matval"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordCrawlRun(ctx, "coop", "ok")
	m.RecordCrawlRun(ctx, "coop", "ok")
	m.RecordIdentityCache(ctx, "memory", true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				totals[metric.Name] += dp.Value
			}
		}
	}
	assert.EqualValues(t, 2, totals["matval_crawl_runs_total"])
	assert.EqualValues(t, 1, totals["matval_identity_cache_lookups_total"])
}
