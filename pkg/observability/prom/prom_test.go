package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matzehuels/projmigrate/pkg/observability"
)

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())

	m.OnStageComplete(ctx, "load", time.Millisecond, nil)
	m.OnStageComplete(ctx, "convert", time.Millisecond, errors.New("boom"))
	m.OnModuleConverted(ctx, "A", nil)
	m.OnModuleConverted(ctx, "B", nil)
	m.OnModuleConverted(ctx, "C", errors.New("no framework"))
	m.OnReconciled(ctx, 3, 4, true)
	m.OnReconciled(ctx, 2, 1, false)
	m.OnCacheHit(ctx, "diagram")
	m.OnCacheMiss(ctx, "diagram")
	m.OnCacheSet(ctx, "diagram", 512)
	m.OnResponse(ctx, "GET", "/healthz", 200, time.Millisecond)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"convert errors", m.stageErrors.WithLabelValues("convert"), 1},
		{"load errors", m.stageErrors.WithLabelValues("load"), 0},
		{"modules ok", m.modulesTotal.WithLabelValues("ok"), 2},
		{"modules error", m.modulesTotal.WithLabelValues("error"), 1},
		{"upgrades", m.upgradesTotal, 5},
		{"passes", m.reconcilePasses, 2},
		{"converged", m.converged, 0},
		{"cache hit", m.cacheRequests.WithLabelValues("diagram", "hit"), 1},
		{"cache bytes", m.cacheBytes.WithLabelValues("diagram"), 512},
		{"http", m.httpRequests.WithLabelValues("GET", "/healthz", "200"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestInstall(t *testing.T) {
	defer observability.Reset()

	m := New(prometheus.NewRegistry())
	m.Install()
	if observability.Pipeline() != m || observability.Cache() != m || observability.HTTP() != m {
		t.Error("Install() should register the metrics as global hooks")
	}
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("registering twice should panic")
		}
	}()
	New(reg)
}
