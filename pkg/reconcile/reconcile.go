// Package reconcile aligns shared package versions across the module graph.
//
// Reconciliation works on units: a node together with its direct neighbors
// in either direction. For every package name held by any member of the unit,
// the highest version held in the unit is pushed to each neighbor holding the
// package at a strictly lower version. The node itself is left alone; it is
// raised by its own neighbors' units. A version that cannot be ordered
// against that highest version, such as an MSBuild property reference, is
// skipped with a warning while the rest of the unit is still aligned.
//
// Full passes over all nodes repeat until one pass changes nothing. Versions
// only ever move up and no package names are added, so the loop reaches a
// fixed point; [Options.MaxPasses] guards against misbehaving modules.
//
//	res := reconcile.New(reconcile.Options{Sink: sink}).Run(g)
//	for _, u := range res.Upgrades {
//	    fmt.Printf("%s: %s %s -> %s\n", u.Module, u.Package, u.From, u.To)
//	}
package reconcile

import (
	"fmt"
	"slices"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/project"
	"github.com/matzehuels/projmigrate/pkg/version"
)

// DefaultMaxPasses bounds the number of passes when Options.MaxPasses is 0.
const DefaultMaxPasses = 1000

// Options configures a [Reconciler].
type Options struct {
	// Sink receives one info diagnostic per upgrade, a warning per skipped
	// node/package pair and an error if the pass limit is hit.
	Sink diag.Sink

	// MaxPasses limits the number of full passes. Zero means DefaultMaxPasses.
	MaxPasses int
}

// Upgrade records one version change applied to a module.
type Upgrade struct {
	Module  string `json:"module"`
	Package string `json:"package"`
	From    string `json:"from"`
	To      string `json:"to"`
	Pass    int    `json:"pass"`
}

// Skip records a package version held by Module that could not be ordered
// against the rest of a unit. The other members of that unit are still
// reconciled.
type Skip struct {
	Module  string `json:"module"`
	Package string `json:"package"`
	Reason  string `json:"reason"`
}

// Result summarizes a reconciliation run.
type Result struct {
	Passes    int       `json:"passes"`
	Upgrades  []Upgrade `json:"upgrades"`
	Skipped   []Skip    `json:"skipped,omitempty"`
	Converged bool      `json:"converged"`
}

// Changed reports whether any module was mutated.
func (r Result) Changed() bool { return len(r.Upgrades) > 0 }

// Reconciler runs reconciliation passes over a graph.
type Reconciler struct {
	sink      diag.Sink
	maxPasses int
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}
	return &Reconciler{sink: opts.Sink, maxPasses: opts.MaxPasses}
}

// holder is one unit member's reference to a package.
type holder struct {
	node int
	ref  project.PackageReference
}

// Run reconciles g until a pass makes no changes or the pass limit is hit.
// It never fails; problems are reported to the sink and recorded in the
// result.
func (r *Reconciler) Run(g *graph.Graph) Result {
	res := Result{Upgrades: []Upgrade{}}
	skipped := make(map[skipKey]bool)

	for pass := 1; ; pass++ {
		if pass > r.maxPasses {
			diag.Errorf(r.sink, "", "reconciliation stopped after %d passes without reaching a fixed point", r.maxPasses)
			return res
		}
		res.Passes = pass

		changed := false
		for i := range g.Len() {
			if r.reconcileUnit(g, i, pass, &res, skipped) {
				changed = true
			}
		}
		if !changed {
			res.Converged = true
			return res
		}
	}
}

type skipKey struct {
	node int
	pkg  string
}

func (r *Reconciler) reconcileUnit(g *graph.Graph, i, pass int, res *Result, skipped map[skipKey]bool) bool {
	neighbors := g.Neighbors(i)
	if len(neighbors) == 0 {
		return false
	}

	var order []string
	byPkg := make(map[string][]holder)
	for _, n := range append([]int{i}, neighbors...) {
		for _, ref := range g.Node(n).Module().Packages() {
			key := ref.Key()
			if _, ok := byPkg[key]; !ok {
				order = append(order, key)
			}
			byPkg[key] = append(byPkg[key], holder{node: n, ref: ref})
		}
	}

	changed := false
	for _, key := range order {
		holders := byPkg[key]
		if len(holders) < 2 {
			continue
		}

		versions := make([]string, len(holders))
		for j, h := range holders {
			versions[j] = h.ref.Version
		}
		top, unordered, err := version.Max(versions)
		if err != nil {
			r.skip(g, i, holders[0].ref.Name, err, res, skipped)
			continue
		}
		for _, j := range unordered {
			h := holders[j]
			r.skip(g, h.node, h.ref.Name, fmt.Errorf("%w: %q against %q", version.ErrUnresolved, h.ref.Version, top), res, skipped)
		}

		for j, h := range holders {
			if h.node == i || slices.Contains(unordered, j) {
				continue
			}
			lower, err := version.Less(h.ref.Version, top)
			if err != nil || !lower {
				continue
			}
			m := g.Node(h.node).Module()
			if !m.SetPackageVersion(h.ref.Name, top) {
				continue
			}
			changed = true
			res.Upgrades = append(res.Upgrades, Upgrade{
				Module:  m.Name(),
				Package: h.ref.Name,
				From:    h.ref.Version,
				To:      top,
				Pass:    pass,
			})
			diag.Infof(r.sink, m.Name(), "upgraded %s from %s to %s", h.ref.Name, h.ref.Version, top)
		}
	}
	return changed
}

func (r *Reconciler) skip(g *graph.Graph, node int, pkg string, err error, res *Result, skipped map[skipKey]bool) {
	k := skipKey{node: node, pkg: project.Key(pkg)}
	if skipped[k] {
		return
	}
	skipped[k] = true
	name := g.Node(node).Name()
	res.Skipped = append(res.Skipped, Skip{Module: name, Package: pkg, Reason: err.Error()})
	diag.Warnf(r.sink, name, "skipped %s: %v", pkg, err)
}
