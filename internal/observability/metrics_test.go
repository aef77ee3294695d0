package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	var m dto.Metric
	counter, err := vec.GetMetricWithLabelValues(label)
	require.NoError(t, err)
	require.NoError(t, counter.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordCatalogWrite(t *testing.T) {
	before := counterValue(t, catalogWrites, "create")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	RecordCatalogWrite("create", ts)

	require.Equal(t, before+1, counterValue(t, catalogWrites, "create"))

	var m dto.Metric
	require.NoError(t, lastCatalogWriteGauge.Write(&m))
	require.Equal(t, float64(ts.Unix()), m.GetGauge().GetValue())
}

func TestRecordCascadeIgnoresNonPositiveCounts(t *testing.T) {
	before := counterValue(t, completionCascades, "category_rename")

	RecordCascade("category_rename", 0)
	RecordCascade("category_rename", -3)
	require.Equal(t, before, counterValue(t, completionCascades, "category_rename"))

	RecordCascade("category_rename", 4)
	require.Equal(t, before+4, counterValue(t, completionCascades, "category_rename"))
}
