package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/projmigrate/pkg/cache"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/observability"
	"github.com/matzehuels/projmigrate/pkg/render/nodelink"
	"github.com/matzehuels/projmigrate/pkg/render/plantuml"
)

const diagramKeyType = "diagram"

// Render produces a diagram of g in opts.Format without caching.
func Render(ctx context.Context, g *graph.Graph, opts DiagramOptions) ([]byte, error) {
	if err := ValidateFormat(opts.Format); err != nil {
		return nil, err
	}

	dotOpts := nodelink.Options{
		Detailed:  opts.Detailed,
		Separator: opts.Separator,
		Highlight: opts.Highlight,
	}

	switch opts.Format {
	case FormatPUML:
		return []byte(plantuml.Render(g, plantuml.Options{Separator: opts.Separator})), nil
	case FormatDOT:
		return []byte(nodelink.ToDOT(g, dotOpts)), nil
	case FormatJSON:
		return graph.MarshalGraph(g)
	case FormatSVG:
		return nodelink.RenderSVG(ctx, nodelink.ToDOT(g, dotOpts))
	case FormatPNG:
		return nodelink.RenderPNG(ctx, nodelink.ToDOT(g, dotOpts))
	}
	return nil, fmt.Errorf("unsupported format: %s", opts.Format)
}

// DiagramWithCacheInfo renders a diagram through the runner's cache and
// reports whether it was served from the cache. Keys are derived from the
// serialized graph, so any change to a module's name, packages or
// references produces a new key.
func (r *Runner) DiagramWithCacheInfo(ctx context.Context, g *graph.Graph, opts DiagramOptions) ([]byte, bool, error) {
	if err := ValidateFormat(opts.Format); err != nil {
		return nil, false, err
	}

	graphData, err := graph.MarshalGraph(g)
	if err != nil {
		return nil, false, fmt.Errorf("serialize graph for cache key: %w", err)
	}
	cacheKey := r.Keyer.DiagramKey(cache.Hash(graphData), cache.DiagramKeyOpts{
		Format:    opts.Format,
		Detailed:  opts.Detailed,
		Separator: opts.Separator,
		Highlight: opts.Highlight,
	})

	cacheHooks := observability.Cache()
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			cacheHooks.OnCacheHit(ctx, diagramKeyType)
			return data, true, nil
		} else if err != nil {
			r.Logger.Warn("cache lookup failed", "error", err)
		}
		cacheHooks.OnCacheMiss(ctx, diagramKeyType)
	}

	hooks := r.hooks()
	hooks.OnRenderStart(ctx, opts.Format)
	start := time.Now()
	data, err := Render(ctx, g, opts)
	hooks.OnRenderComplete(ctx, opts.Format, len(data), time.Since(start), err)
	if err != nil {
		return nil, false, fmt.Errorf("render %s: %w", opts.Format, err)
	}

	if err := r.Cache.Set(ctx, cacheKey, data, r.ttl()); err != nil {
		r.Logger.Warn("cache write failed", "error", err)
	} else {
		cacheHooks.OnCacheSet(ctx, diagramKeyType, len(data))
	}

	r.Logger.Debug("rendered diagram", "format", opts.Format, "bytes", len(data), "duration", time.Since(start))
	return data, false, nil
}

// Diagram is a convenience wrapper that calls DiagramWithCacheInfo and discards the cache hit info.
func (r *Runner) Diagram(ctx context.Context, g *graph.Graph, opts DiagramOptions) ([]byte, error) {
	data, _, err := r.DiagramWithCacheInfo(ctx, g, opts)
	return data, err
}
