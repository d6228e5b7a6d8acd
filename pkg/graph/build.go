package graph

import (
	"slices"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/project"
)

// Node wraps one module of the workspace.
//
// The zero value is not usable; nodes are created by [Build].
type Node struct {
	module       project.Module
	index        int
	dependsOn    []int // nodes this node requires
	dependedOnBy []int // nodes that require this node
}

// Index returns the node's position in the graph.
func (n *Node) Index() int { return n.index }

// Name returns the wrapped module's name.
func (n *Node) Name() string { return n.module.Name() }

// Module returns the wrapped module.
func (n *Node) Module() project.Module { return n.module }

// Edge is a directed "depends on" relationship between two node indices.
type Edge struct {
	From int
	To   int
}

// Graph is an ordered collection of nodes with fixed edges.
//
// Graph is not safe for concurrent use. The reconciler mutates the wrapped
// modules, never the graph structure.
type Graph struct {
	nodes []*Node
	index map[string]int
}

// Options configures [Build].
type Options struct {
	// Sink receives diagnostics about rejected modules, self references and
	// missing dependency targets. Nil discards them.
	Sink diag.Sink
}

// Build creates a graph with one node per module, in input order.
//
// Modules with an invalid name, or whose name (ignoring case) was already
// taken by an earlier module, are reported as errors and excluded. Declared
// dependencies are matched case-insensitively; a name without a matching
// module is reported once, as a warning naming the first module declaring it.
func Build(modules []project.Module, opts Options) *Graph {
	g := &Graph{index: make(map[string]int, len(modules))}

	for _, m := range modules {
		if m == nil {
			continue
		}
		name := m.Name()
		if err := errors.ValidateModuleName(name); err != nil {
			diag.Errorf(opts.Sink, name, "module excluded: %s", errors.UserMessage(err))
			continue
		}
		key := project.Key(name)
		if first, ok := g.index[key]; ok {
			diag.Errorf(opts.Sink, name, "module excluded: name already used by %s", g.nodes[first].Name())
			continue
		}
		g.index[key] = len(g.nodes)
		g.nodes = append(g.nodes, &Node{module: m, index: len(g.nodes)})
	}

	missing := make(map[string]bool)
	for _, p := range g.nodes {
		for _, dep := range p.module.DependsOn() {
			key := project.Key(dep)
			c, ok := g.index[key]
			switch {
			case !ok:
				if !missing[key] {
					missing[key] = true
					diag.Warnf(opts.Sink, p.Name(), "dependency %q not found in workspace", dep)
				}
			case c == p.index:
				diag.Warnf(opts.Sink, p.Name(), "module lists itself as a dependency; ignored")
			default:
				g.link(p.index, c)
			}
		}
	}
	return g
}

func (g *Graph) link(from, to int) {
	p, c := g.nodes[from], g.nodes[to]
	if !slices.Contains(p.dependsOn, to) {
		p.dependsOn = append(p.dependsOn, to)
	}
	if !slices.Contains(c.dependedOnBy, from) {
		c.dependedOnBy = append(c.dependedOnBy, from)
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node at index i.
func (g *Graph) Node(i int) *Node { return g.nodes[i] }

// Nodes returns all nodes in graph order.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Lookup finds a node by module name, ignoring case.
func (g *Graph) Lookup(name string) (*Node, bool) {
	i, ok := g.index[project.Key(name)]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// DependsOn returns the indices of the nodes node i requires, in declaration
// order.
func (g *Graph) DependsOn(i int) []int { return slices.Clone(g.nodes[i].dependsOn) }

// DependedOnBy returns the indices of the nodes requiring node i, in graph
// order.
func (g *Graph) DependedOnBy(i int) []int { return slices.Clone(g.nodes[i].dependedOnBy) }

// Neighbors returns the direct neighbors of node i in either direction,
// without duplicates, sorted by index.
func (g *Graph) Neighbors(i int) []int {
	n := g.nodes[i]
	out := make([]int, 0, len(n.dependsOn)+len(n.dependedOnBy))
	out = append(out, n.dependsOn...)
	out = append(out, n.dependedOnBy...)
	slices.Sort(out)
	return slices.Compact(out)
}

// HasEdge reports whether node from depends on node to.
func (g *Graph) HasEdge(from, to int) bool {
	return slices.Contains(g.nodes[from].dependsOn, to)
}

// Edges returns every edge, ordered by source node and then declaration.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, n := range g.nodes {
		for _, to := range n.dependsOn {
			out = append(out, Edge{From: n.index, To: to})
		}
	}
	return out
}

// Modules returns the wrapped modules in graph order.
func (g *Graph) Modules() []project.Module {
	out := make([]project.Module, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.module
	}
	return out
}
