// Package metrics holds the Prometheus collectors for uploads and sync runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 上传结果标签
const (
	UploadStored    = "stored"
	UploadDuplicate = "duplicate"
	UploadFailed    = "failed"
)

// Metrics 持有所有 Prometheus 指标
// 每个实例使用独立的 Registry，测试之间互不干扰
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil
type Metrics struct {
	registry *prometheus.Registry

	Uploads        *prometheus.CounterVec // hv_uploads_total{result}
	SyncRuns       prometheus.Counter
	SyncItems      *prometheus.CounterVec // hv_sync_items_total{result}
	SyncDuration   prometheus.Histogram
	EligibleRecord prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hv_uploads_total",
			Help: "Uploads by outcome (stored, duplicate, failed)",
		}, []string{"result"}),

		SyncRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "hv_sync_runs_total",
			Help: "Completed sync runs",
		}),

		SyncItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hv_sync_items_total",
			Help: "Records processed by sync runs by outcome",
		}, []string{"result"}),

		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hv_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),

		EligibleRecord: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hv_sync_eligible_records",
			Help: "Fast-tier records found at the start of the last sync run",
		}),
	}
}

// Registry 用于暴露或导出指标
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveUpload 记录一次上传结果
func (m *Metrics) ObserveUpload(result string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(result).Inc()
}

// ObserveSyncRun 记录一次同步运行
func (m *Metrics) ObserveSyncRun(eligible, succeeded, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SyncRuns.Inc()
	m.EligibleRecord.Set(float64(eligible))
	m.SyncItems.WithLabelValues("succeeded").Add(float64(succeeded))
	m.SyncItems.WithLabelValues("failed").Add(float64(failed))
	m.SyncDuration.Observe(elapsed.Seconds())
}

// WriteTextfile 以文本格式写出全部指标 (node-exporter textfile collector)
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
