// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/projmigrate/pkg/observability"
)

const namespace = "projmigrate"

// Metrics implements every hook interface of package observability.
type Metrics struct {
	stageDuration   *prometheus.HistogramVec
	stageErrors     *prometheus.CounterVec
	modulesTotal    *prometheus.CounterVec
	upgradesTotal   prometheus.Counter
	reconcilePasses prometheus.Gauge
	converged       prometheus.Gauge
	renderDuration  *prometheus.HistogramVec
	renderErrors    *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
	cacheBytes      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each migration stage.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_errors_total",
				Help:      "Number of failed migration stages.",
			},
			[]string{"stage"},
		),
		modulesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_converted_total",
				Help:      "Number of project conversions by result.",
			},
			[]string{"result"},
		),
		upgradesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "package_upgrades_total",
				Help:      "Total number of package versions raised by reconciliation.",
			},
		),
		reconcilePasses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconcile_passes",
				Help:      "Number of passes taken by the last reconciliation.",
			},
		),
		converged: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconcile_converged",
				Help:      "1 if the last reconciliation reached a fixed point.",
			},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Time taken to render a diagram.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		renderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_errors_total",
				Help:      "Number of failed diagram renders.",
			},
			[]string{"format"},
		),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by key type and result.",
			},
			[]string{"key_type", "result"},
		),
		cacheBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_written_bytes_total",
				Help:      "Bytes written to the cache.",
			},
			[]string{"key_type"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Diagnostics server requests by route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Diagnostics server request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.stageDuration,
		m.stageErrors,
		m.modulesTotal,
		m.upgradesTotal,
		m.reconcilePasses,
		m.converged,
		m.renderDuration,
		m.renderErrors,
		m.cacheRequests,
		m.cacheBytes,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Install registers m as the global pipeline, cache and HTTP hooks.
func (m *Metrics) Install() {
	observability.SetPipelineHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

func (m *Metrics) OnStageStart(context.Context, string, int) {}

func (m *Metrics) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) OnModuleConverted(_ context.Context, _ string, err error) {
	m.modulesTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) OnReconciled(_ context.Context, passes, upgrades int, converged bool) {
	m.upgradesTotal.Add(float64(upgrades))
	m.reconcilePasses.Set(float64(passes))
	if converged {
		m.converged.Set(1)
	} else {
		m.converged.Set(0)
	}
}

func (m *Metrics) OnRenderStart(context.Context, string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, format string, _ int, d time.Duration, err error) {
	m.renderDuration.WithLabelValues(format).Observe(d.Seconds())
	if err != nil {
		m.renderErrors.WithLabelValues(format).Inc()
	}
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, route string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)
