// Package graph builds the module dependency graph.
//
// A [Graph] is an ordered arena of [Node] values, one per accepted module,
// with edges stored as node indices. An edge A→B means "A requires B". Each
// edge is recorded twice, in A's dependsOn set and in B's dependedOnBy set,
// and neither set ever holds duplicates or the node itself.
//
// # Building
//
// [Build] resolves every declared dependency name against a case-insensitive
// name index:
//
//	g := graph.Build(modules, graph.Options{Sink: sink})
//	for _, n := range g.Nodes() {
//	    fmt.Println(n.Name(), g.DependsOn(n.Index()))
//	}
//
// Problems never abort a build. A module that lists itself, a dependency name
// with no matching module, and a second module reusing an existing name are
// all reported to the [diag.Sink] and left out of the edge set.
//
// # Serialization
//
// [MarshalGraph] and [WriteGraph] export nodes (with their package references)
// and edges as JSON for tooling:
//
//	{
//	  "nodes": [{"id": "App", "packages": [{"name": "Json", "version": "1.2.0"}]}],
//	  "edges": [{"from": "App", "to": "Core"}]
//	}
//
// Edges are fixed once Build returns. The modules they wrap stay mutable and
// are rewritten by the reconcile package.
package graph
