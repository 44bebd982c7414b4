package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordsQuarantined.WithLabelValues("VALIDATION", "VALIDATION_FAILED").Inc()
	m.RecordsQuarantined.WithLabelValues("VALIDATION", "VALIDATION_FAILED").Inc()
	m.DuplicatesDropped.WithLabelValues("BSE_BHAV").Add(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsQuarantined.WithLabelValues("VALIDATION", "VALIDATION_FAILED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DuplicatesDropped.WithLabelValues("BSE_BHAV")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	for _, f := range families {
		assert.Contains(t, f.GetName(), "test_")
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.NoticesNeedsReview)
	RecordNoticeParsed("SPLIT", "HIGH", true)
	RecordNoticeParsed("SPLIT", "HIGH", false)
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.NoticesNeedsReview))

	RecordDuplicatesDropped(map[string]int{"X": 2})
	assert.GreaterOrEqual(t, testutil.ToFloat64(DefaultMetrics.DuplicatesDropped.WithLabelValues("X")), 2.0)
}

func TestInit_ServesNamespacedRegistry(t *testing.T) {
	old := DefaultMetrics
	t.Cleanup(func() { DefaultMetrics = old })

	h := Init("custom")
	RecordBatchRun("success", 1700000000)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `custom_batch_runs_total{status="success"} 1`)
	assert.Contains(t, string(body), "custom_health_last_successful_batch_timestamp 1.7e+09")
	assert.Contains(t, string(body), "go_goroutines")
}
