// Package observability provides hooks for metrics and tracing.
//
// Libraries emit events through hook interfaces without depending on a
// metrics backend. The defaults do nothing. The serve command installs the
// Prometheus implementation from the prom subpackage:
//
//	reg := prometheus.NewRegistry()
//	prom.New(reg).Install()
//	defer observability.Reset()
//
// Pipeline code reports events through the registry:
//
//	observability.Pipeline().OnStageStart(ctx, "reconcile", modules)
//	// ... reconcile ...
//	observability.Pipeline().OnStageComplete(ctx, "reconcile", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the migration pipeline.
type PipelineHooks interface {
	// Stage events: discover, load, convert, build, reconcile, prune, save.
	OnStageStart(ctx context.Context, stage string, modules int)
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnModuleConverted records the outcome of converting one project.
	OnModuleConverted(ctx context.Context, module string, err error)

	// OnReconciled records a finished reconciliation.
	OnReconciled(ctx context.Context, passes, upgrades int, converged bool)

	// Render events
	OnRenderStart(ctx context.Context, format string)
	OnRenderComplete(ctx context.Context, format string, size int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the diagnostics server.
type HTTPHooks interface {
	// OnRequest records an incoming request to a route pattern.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageStart(context.Context, string, int)                           {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, time.Duration, error)       {}
func (NoopPipelineHooks) OnModuleConverted(context.Context, string, error)                    {}
func (NoopPipelineHooks) OnReconciled(context.Context, int, int, bool)                        {}
func (NoopPipelineHooks) OnRenderStart(context.Context, string)                               {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// registry holds the process-wide hooks. Setters are meant for startup;
// getters are called on every event.
var registry = struct {
	sync.RWMutex
	pipeline PipelineHooks
	cache    CacheHooks
	http     HTTPHooks
}{
	pipeline: NoopPipelineHooks{},
	cache:    NoopCacheHooks{},
	http:     NoopHTTPHooks{},
}

// SetPipelineHooks replaces the pipeline hooks. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	if h == nil {
		return
	}
	registry.Lock()
	registry.pipeline = h
	registry.Unlock()
}

// SetCacheHooks replaces the cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	if h == nil {
		return
	}
	registry.Lock()
	registry.cache = h
	registry.Unlock()
}

// SetHTTPHooks replaces the HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h == nil {
		return
	}
	registry.Lock()
	registry.http = h
	registry.Unlock()
}

func Pipeline() PipelineHooks {
	registry.RLock()
	defer registry.RUnlock()
	return registry.pipeline
}

func Cache() CacheHooks {
	registry.RLock()
	defer registry.RUnlock()
	return registry.cache
}

func HTTP() HTTPHooks {
	registry.RLock()
	defer registry.RUnlock()
	return registry.http
}

// Reset restores the no-op hooks.
func Reset() {
	registry.Lock()
	defer registry.Unlock()
	registry.pipeline = NoopPipelineHooks{}
	registry.cache = NoopCacheHooks{}
	registry.http = NoopHTTPHooks{}
}
