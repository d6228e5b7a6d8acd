package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/projmigrate/pkg/project"
)

// =============================================================================
// Serialization Types
// =============================================================================

// Document is the JSON form of a graph.
type Document struct {
	Nodes []DocumentNode `json:"nodes"`
	Edges []DocumentEdge `json:"edges"`
}

// DocumentNode is one module with its current package references.
type DocumentNode struct {
	ID       string                     `json:"id"`
	Group    string                     `json:"group,omitempty"`
	Packages []project.PackageReference `json:"packages,omitempty"`
}

// DocumentEdge is a dependency between two module names.
type DocumentEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// =============================================================================
// Graph Serialization API
// =============================================================================

// Export converts g to its serialization form. Nodes keep graph order and
// group names use [GroupOf] with the default separator.
func Export(g *Graph) Document {
	doc := Document{
		Nodes: make([]DocumentNode, 0, g.Len()),
		Edges: []DocumentEdge{},
	}
	for _, n := range g.nodes {
		doc.Nodes = append(doc.Nodes, DocumentNode{
			ID:       n.Name(),
			Group:    GroupOf(n.Name(), DefaultSeparator),
			Packages: n.module.Packages(),
		})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, DocumentEdge{
			From: g.nodes[e.From].Name(),
			To:   g.nodes[e.To].Name(),
		})
	}
	return doc
}

// MarshalGraph converts a graph to indented JSON bytes.
func MarshalGraph(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes a graph as JSON to an io.Writer.
func WriteGraph(g *Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Export(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteGraphFile writes a graph to a JSON file.
func WriteGraphFile(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}

// UnmarshalDocument decodes JSON produced by [MarshalGraph].
func UnmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

// Modules rebuilds in-memory modules from a document, so a graph exported by
// one run can be rebuilt with [Build] without reading descriptors.
func (d Document) Modules() []project.Module {
	deps := make(map[string][]string)
	for _, e := range d.Edges {
		deps[e.From] = append(deps[e.From], e.To)
	}
	out := make([]project.Module, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		out = append(out, project.NewStatic(n.ID, deps[n.ID], n.Packages...))
	}
	return out
}
