// Package plantuml renders the module graph as a PlantUML component diagram.
//
// Modules are grouped into one node cluster per naming prefix, then every
// dependency is emitted once as a downward link from the dependent module to
// the module it requires:
//
//	@startuml
//	node "Group_Contoso" {
//	[Contoso.App]
//	[Contoso.Core]
//	}
//	[Contoso.App] <-down- [Contoso.Core]
//	@enduml
//
// Output is deterministic for a given graph and exists for human inspection
// only; nothing reads it back.
package plantuml

import (
	"fmt"
	"strings"

	"github.com/matzehuels/projmigrate/pkg/graph"
)

// Options configures diagram rendering.
type Options struct {
	// Separator splits a module name into its group prefix. Empty uses
	// graph.DefaultSeparator.
	Separator string

	// GroupPrefix is prepended to each cluster name. Empty uses "Group_".
	GroupPrefix string
}

// Render returns the PlantUML source for g.
//
// Groups appear in order of their first module. Within a group each module is
// listed in graph order. Edges are collected while walking the groups, first
// the modules depending on a node and then the modules it depends on, and
// each distinct edge is written once after all groups.
func Render(g *graph.Graph, opts Options) string {
	prefix := opts.GroupPrefix
	if prefix == "" {
		prefix = "Group_"
	}

	var b strings.Builder
	b.WriteString("@startuml\n")

	type link struct{ from, to string }
	var links []link
	seen := make(map[link]bool)
	add := func(from, to int) {
		l := link{g.Node(from).Name(), g.Node(to).Name()}
		if !seen[l] {
			seen[l] = true
			links = append(links, l)
		}
	}

	for _, grp := range g.Groups(opts.Separator) {
		fmt.Fprintf(&b, "node %q {\n", prefix+grp.Name)
		for _, i := range grp.Nodes {
			fmt.Fprintf(&b, "[%s]\n", g.Node(i).Name())
			for _, by := range g.DependedOnBy(i) {
				add(by, i)
			}
			for _, on := range g.DependsOn(i) {
				add(i, on)
			}
		}
		b.WriteString("}\n")
	}

	for _, l := range links {
		fmt.Fprintf(&b, "[%s] <-down- [%s]\n", l.from, l.to)
	}

	b.WriteString("@enduml\n")
	return b.String()
}
