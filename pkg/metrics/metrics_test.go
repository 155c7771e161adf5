package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveUpload(t *testing.T) {
	m := New()

	m.ObserveUpload(UploadStored)
	m.ObserveUpload(UploadStored)
	m.ObserveUpload(UploadDuplicate)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Uploads.WithLabelValues(UploadStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(UploadDuplicate)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Uploads.WithLabelValues(UploadFailed)))
}

func TestMetrics_ObserveSyncRun(t *testing.T) {
	m := New()

	m.ObserveSyncRun(5, 4, 1, 2*time.Second)
	m.ObserveSyncRun(1, 1, 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EligibleRecord), "gauge keeps the last run")
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SyncItems.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncItems.WithLabelValues("failed")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpload(UploadStored)
		m.ObserveSyncRun(1, 1, 0, time.Second)
		assert.NoError(t, m.WriteTextfile("unused"))
		assert.Nil(t, m.Registry())
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveSyncRun(3, 3, 0, time.Second)

	path := filepath.Join(t.TempDir(), "hv.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hv_sync_runs_total 1")
	assert.Contains(t, string(data), `hv_sync_items_total{result="succeeded"} 3`)
}
