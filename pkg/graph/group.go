package graph

import "strings"

// DefaultSeparator splits a module name into its group prefix and the rest.
const DefaultSeparator = "."

// GroupOf returns the portion of name before the first sep, or the whole
// name when sep does not occur. An empty sep uses [DefaultSeparator].
func GroupOf(name, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	prefix, _, _ := strings.Cut(name, sep)
	return prefix
}

// Group is a set of nodes sharing a naming prefix.
type Group struct {
	Name  string
	Nodes []int
}

// Groups partitions the nodes by [GroupOf], in order of first appearance.
// Nodes keep graph order within each group.
func (g *Graph) Groups(sep string) []Group {
	var out []Group
	pos := make(map[string]int)
	for _, n := range g.nodes {
		key := GroupOf(n.Name(), sep)
		i, ok := pos[key]
		if !ok {
			i = len(out)
			pos[key] = i
			out = append(out, Group{Name: key})
		}
		out[i].Nodes = append(out[i].Nodes, n.index)
	}
	return out
}
