// Package render groups the read-only views over the module graph.
//
//   - [plantuml]: grouped PlantUML component diagram
//   - [nodelink]: Graphviz DOT with in-process SVG and PNG rendering
//
// Neither renderer mutates the graph, and no part of the migration reads
// their output back.
//
// [plantuml]: github.com/matzehuels/projmigrate/pkg/render/plantuml
// [nodelink]: github.com/matzehuels/projmigrate/pkg/render/nodelink
package render
