package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/msbuild"
	"github.com/matzehuels/projmigrate/pkg/project"
	"github.com/matzehuels/projmigrate/pkg/reconcile"
	"github.com/matzehuels/projmigrate/pkg/workspace"
)

// migration is the working state of one Migrate call.
type migration struct {
	opts     Options
	res      *Result
	sink     diag.Sink
	projects []*msbuild.Project
	plans    [][]string
	active   []int
}

// Migrate runs every stage over the workspace in opts.Dir.
//
// It returns an error only when the workspace is invalid, the context is
// cancelled or an internal failure occurs. Problems with single projects
// are reported as diagnostics and recorded in the result.
func (r *Runner) Migrate(ctx context.Context, opts Options) (*Result, error) {
	collector := &diag.Collector{}
	m := &migration{
		opts: opts,
		res: &Result{
			RunID:    uuid.NewString(),
			Dir:      opts.Dir,
			DryRun:   opts.DryRun,
			Projects: []ProjectResult{},
		},
		sink: diag.Tee(collector, opts.Sink),
	}
	res := m.res
	logger := r.Logger.With("run", res.RunID[:8])

	var paths []string
	if err := r.stage(ctx, res, StageDiscover, 0, func() (err error) {
		paths, err = workspace.Discover(ctx, opts.Dir)
		return err
	}); err != nil {
		return nil, err
	}
	res.Stats.Discovered = len(paths)

	if err := r.stage(ctx, res, StageLoad, len(paths), func() error {
		return m.load(ctx, paths)
	}); err != nil {
		return nil, err
	}
	logger.Info("loaded projects", "loaded", res.Stats.Loaded, "discovered", res.Stats.Discovered)

	if err := r.stage(ctx, res, StageConvert, len(m.projects), func() error {
		return m.convert(ctx, r)
	}); err != nil {
		return nil, err
	}
	if !opts.SkipConvert {
		logger.Info("converted projects", "converted", res.Stats.Converted, "excluded", res.Stats.Excluded)
	}

	var g *graph.Graph
	if err := r.stage(ctx, res, StageBuild, len(m.active), func() error {
		g = graph.Build(m.modules(), graph.Options{Sink: m.sink})
		m.keepGraphed(g)
		return nil
	}); err != nil {
		return nil, err
	}
	res.Graph = g

	if err := r.stage(ctx, res, StageReconcile, g.Len(), func() error {
		ro := opts.Reconcile
		ro.Sink = m.sink
		res.Reconcile = reconcile.New(ro).Run(g)
		m.countUpgrades()
		return nil
	}); err != nil {
		return nil, err
	}
	r.hooks().OnReconciled(ctx, res.Reconcile.Passes, len(res.Reconcile.Upgrades), res.Reconcile.Converged)
	logger.Info("reconciled versions",
		"passes", res.Reconcile.Passes,
		"upgrades", len(res.Reconcile.Upgrades),
		"converged", res.Reconcile.Converged)

	if opts.Prune && !opts.SkipConvert {
		if err := r.stage(ctx, res, StagePrune, len(m.active), func() error {
			m.prune()
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if err := r.stage(ctx, res, StageSave, len(m.active), func() error {
		return m.save(ctx)
	}); err != nil {
		return nil, err
	}
	if opts.DryRun {
		logger.Info("dry run, nothing written")
	} else {
		logger.Info("saved projects", "saved", res.Stats.Saved, "pruned", res.Stats.Pruned)
	}

	res.Diagnostics = collector.All()
	return res, nil
}

func (m *migration) load(ctx context.Context, paths []string) error {
	projects, err := workspace.Load(ctx, paths, m.sink)
	if err != nil {
		return err
	}
	if m.opts.Projects != nil {
		projects = workspace.Filter(projects, m.opts.Projects)
	}

	m.projects = projects
	m.plans = make([][]string, len(projects))
	m.res.Projects = make([]ProjectResult, len(projects))
	for i, p := range projects {
		m.res.Projects[i] = ProjectResult{
			Name:  p.Name(),
			Path:  p.Path(),
			Style: p.Style().String(),
		}
	}
	m.res.Stats.Loaded = len(projects)
	return nil
}

// convert rewrites the legacy projects. The prune plan of a project is taken
// before its conversion removes the explicit file items.
func (m *migration) convert(ctx context.Context, r *Runner) error {
	convOpts := m.opts.Convert
	convOpts.Sink = m.sink

	for i, p := range m.projects {
		if err := ctx.Err(); err != nil {
			return err
		}
		pr := &m.res.Projects[i]

		if m.opts.SkipConvert || p.Style() == msbuild.SDK {
			if !m.opts.SkipConvert {
				diag.Infof(m.sink, p.Name(), "already SDK-style; not converted")
			}
			if p.Style() == msbuild.SDK && p.IsLegacy() {
				diag.Warnf(m.sink, p.Name(), "SDK-style project still carries legacy markers")
			}
			m.active = append(m.active, i)
			continue
		}

		if m.opts.Prune {
			files, err := msbuild.UnreferencedFiles(p, m.opts.PruneItemTypes)
			if err != nil {
				diag.Warnf(m.sink, p.Name(), "not pruned: %s", errors.UserMessage(err))
			}
			m.plans[i] = files
		}

		err := msbuild.Convert(p, convOpts)
		r.hooks().OnModuleConverted(ctx, p.Name(), err)
		if err != nil {
			if !errors.IsProjectLocal(err) {
				return err
			}
			pr.Excluded = true
			pr.Error = errors.UserMessage(err)
			m.plans[i] = nil
			m.res.Stats.Excluded++
			diag.Errorf(m.sink, p.Name(), "not converted: %s", pr.Error)
			continue
		}

		pr.Converted = true
		pr.Deleted = p.PendingDeletes()
		m.res.Stats.Converted++
		m.active = append(m.active, i)
	}
	return nil
}

func (m *migration) modules() []project.Module {
	out := make([]project.Module, len(m.active))
	for k, i := range m.active {
		out[k] = m.projects[i]
	}
	return out
}

// keepGraphed drops the projects Build left out of g, such as a second
// project with an already used name, so they are neither pruned nor saved.
func (m *migration) keepGraphed(g *graph.Graph) {
	kept := m.active[:0]
	for _, i := range m.active {
		p := m.projects[i]
		if n, ok := g.Lookup(p.Name()); ok && n.Module() == project.Module(p) {
			kept = append(kept, i)
			continue
		}
		pr := &m.res.Projects[i]
		if pr.Converted {
			pr.Converted = false
			pr.Deleted = nil
			m.res.Stats.Converted--
		}
		pr.Excluded = true
		pr.Error = "not part of the dependency graph"
		m.plans[i] = nil
		m.res.Stats.Excluded++
	}
	m.active = kept
}

func (m *migration) countUpgrades() {
	index := make(map[string]int, len(m.active))
	for _, i := range m.active {
		index[project.Key(m.projects[i].Name())] = i
	}
	for _, u := range m.res.Reconcile.Upgrades {
		if i, ok := index[project.Key(u.Module)]; ok {
			m.res.Projects[i].Upgrades++
		}
	}
}

// prune deletes the planned files of converted projects. In a dry run the
// plan is only recorded.
func (m *migration) prune() {
	for _, i := range m.active {
		files := m.plans[i]
		if len(files) == 0 {
			continue
		}
		pr := &m.res.Projects[i]
		pr.Pruned = files
		m.res.Stats.Pruned += len(files)
		if m.opts.DryRun {
			continue
		}
		if err := msbuild.RemoveFiles(files); err != nil {
			diag.Errorf(m.sink, pr.Name, "prune: %s", errors.UserMessage(err))
		}
	}
}

// save writes each changed project. A failed save is reported and does not
// stop the others.
func (m *migration) save(ctx context.Context) error {
	if m.opts.DryRun {
		return nil
	}
	for _, i := range m.active {
		if err := ctx.Err(); err != nil {
			return err
		}
		pr := &m.res.Projects[i]
		if !pr.Changed() {
			continue
		}
		if err := m.projects[i].Save(); err != nil {
			if !errors.IsProjectLocal(err) {
				return err
			}
			diag.Errorf(m.sink, pr.Name, "%s", errors.UserMessage(err))
			continue
		}
		pr.Saved = true
		m.res.Stats.Saved++
	}
	return nil
}
