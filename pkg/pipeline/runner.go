package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/projmigrate/pkg/cache"
	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/observability"
	"github.com/matzehuels/projmigrate/pkg/workspace"
)

// DefaultDiagramTTL is how long rendered diagrams stay cached when
// Runner.TTL is zero.
const DefaultDiagramTTL = 24 * time.Hour

// Runner executes pipeline stages with caching.
// Both CLI and diagnostics server use this to avoid duplicating logic.
//
// The Runner keeps no per-run state, so one Runner may serve concurrent
// runs over different workspaces.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	Hooks  observability.PipelineHooks

	// TTL is the lifetime of cached diagrams.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// Hooks default to the globally registered pipeline hooks.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Hooks:  observability.Pipeline(),
		TTL:    DefaultDiagramTTL,
	}
}

// Graph discovers and loads the projects under dir and links them without
// converting or mutating anything. Load failures and dangling references
// are reported to sink.
func (r *Runner) Graph(ctx context.Context, dir string, sink diag.Sink) (*graph.Graph, error) {
	res := &Result{Dir: dir}

	var paths []string
	if err := r.stage(ctx, res, StageDiscover, 0, func() (err error) {
		paths, err = workspace.Discover(ctx, dir)
		return err
	}); err != nil {
		return nil, err
	}

	var g *graph.Graph
	err := r.stage(ctx, res, StageLoad, len(paths), func() error {
		projects, err := workspace.Load(ctx, paths, sink)
		if err != nil {
			return err
		}
		g = graph.Build(workspace.Modules(projects), graph.Options{Sink: sink})
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.Logger.Debug("built graph", "dir", dir, "modules", g.Len(), "edges", len(g.Edges()))
	return g, nil
}

// stage runs fn as one named pipeline stage, checking ctx first and
// reporting the stage to hooks and res.Stats.
func (r *Runner) stage(ctx context.Context, res *Result, name string, modules int, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hooks := r.hooks()
	hooks.OnStageStart(ctx, name, modules)
	start := time.Now()

	err := fn()

	d := time.Since(start)
	res.Stats.Stages = append(res.Stats.Stages, StageTime{Stage: name, Duration: d})
	hooks.OnStageComplete(ctx, name, d, err)
	return err
}

func (r *Runner) hooks() observability.PipelineHooks {
	if r.Hooks == nil {
		return observability.NoopPipelineHooks{}
	}
	return r.Hooks
}

func (r *Runner) ttl() time.Duration {
	if r.TTL <= 0 {
		return DefaultDiagramTTL
	}
	return r.TTL
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
