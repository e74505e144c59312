package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	mediaTotal           *prometheus.CounterVec
	mediaDuration        *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
	watermarkedTotal     prometheus.Counter
	webhookFailuresTotal prometheus.Counter
	pixelsProcessedTotal prometheus.Counter
	bytesSavedTotal      prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		mediaTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaflow_worker_media_total",
			Help: "Optimize tasks handled by source type and outcome.",
		}, []string{"source_type", "outcome"}),
		mediaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediaflow_worker_media_duration_seconds",
			Help:    "Wall time of each optimize task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "outcome"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediaflow_worker_active_jobs",
			Help: "Optimize tasks currently holding a worker slot.",
		}),
		watermarkedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaflow_worker_watermarked_total",
			Help: "Optimized outputs that carry a watermark.",
		}),
		webhookFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaflow_worker_webhook_failures_total",
			Help: "Webhook deliveries that failed after all attempts.",
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaflow_usage_pixels_processed_total",
			Help: "Output pixels produced across optimized media.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaflow_usage_bytes_saved_total",
			Help: "Bytes saved across optimized media.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaflow_usage_compute_time_ms_total",
			Help: "Compute time in milliseconds across optimized media.",
		}),
	}

	registry.MustRegister(
		m.mediaTotal,
		m.mediaDuration,
		m.activeJobs,
		m.watermarkedTotal,
		m.webhookFailuresTotal,
		m.pixelsProcessedTotal,
		m.bytesSavedTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
