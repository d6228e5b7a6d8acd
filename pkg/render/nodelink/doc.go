// Package nodelink renders the module graph as a Graphviz node-link diagram.
//
// # Usage
//
// Convert a graph to DOT format, then render to SVG or PNG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot)
//
// # Options
//
//   - Detailed: node labels list the module's package references
//   - Separator: naming separator used to cluster modules
//   - Highlight: modules drawn with an accent fill
//
// # DOT Format
//
// Modules sharing a naming prefix become a `subgraph cluster_N`, matching the
// groups of the PlantUML diagram. The DOT source can be rendered in-process
// or saved and processed with external Graphviz tools.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process rendering.
package nodelink
