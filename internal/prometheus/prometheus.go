// Package prometheus 提供报告生成指标导出功能
package prometheus

import (
	"net/http"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/bridge"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gpu_detect"

// Metrics 报告相关指标
type Metrics struct {
	registry    *prometheus.Registry
	reports     *prometheus.CounterVec
	adapters    *prometheus.CounterVec
	warnings    prometheus.Counter
	truncations *prometheus.CounterVec
	bytes       prometheus.Histogram
	duration    prometheus.Histogram
	lastAdapter *prometheus.GaugeVec
}

// New 创建指标并注册到独立的 Registry
func New(version string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Reports built, by outcome.",
		}, []string{"outcome"}),
		adapters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapters_reported_total",
			Help:      "Adapter lines written, by label.",
		}, []string{"label"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_warnings_total",
			Help:      "Probe failures reported as warnings.",
		}),
		truncations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncations_total",
			Help:      "Reports cut short, by layer.",
		}, []string{"layer"}),
		bytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_bytes",
			Help:      "Size of exported reports in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time spent enumerating and writing a report.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastAdapter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_report_adapters",
			Help:      "Adapters in the most recent report, by label.",
		}, []string{"label"}),
	}

	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "info",
		Help:        "Build information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
	info.Set(1)

	m.registry.MustRegister(
		m.reports, m.adapters, m.warnings, m.truncations,
		m.bytes, m.duration, m.lastAdapter, info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe 记录一次导出结果，可直接作为 bridge.Bridge.Observe
func (m *Metrics) Observe(r bridge.Result) {
	outcome := "ok"
	switch {
	case r.Summary.FatalStage != "":
		outcome = "fatal"
	case r.Summary.Adapters() == 0:
		outcome = "empty"
	}
	m.reports.WithLabelValues(outcome).Inc()
	m.adapters.WithLabelValues("integrated").Add(float64(r.Summary.Integrated))
	m.adapters.WithLabelValues("dedicated").Add(float64(r.Summary.Dedicated))
	m.lastAdapter.WithLabelValues("integrated").Set(float64(r.Summary.Integrated))
	m.lastAdapter.WithLabelValues("dedicated").Set(float64(r.Summary.Dedicated))
	m.warnings.Add(float64(r.Summary.Warnings))
	if r.Summary.Truncated {
		m.truncations.WithLabelValues("buffer").Inc()
	}
	if r.Dropped > 0 {
		m.truncations.WithLabelValues("transport").Inc()
	}
	m.bytes.Observe(float64(len(r.Text)))
	m.duration.Observe(r.Duration.Seconds())
}

// Registry 返回内部 Registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 获取Prometheus指标处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
