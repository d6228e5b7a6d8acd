package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/projmigrate/pkg/project"
)

func TestMarshalGraphRoundTrip(t *testing.T) {
	g := Build(mods(
		project.NewStatic("App", []string{"Core"}, project.Ref("Json", "1.0.0")),
		project.NewStatic("Core", nil, project.Ref("Json", "1.2.0")),
	), Options{})

	data, err := MarshalGraph(g)
	if err != nil {
		t.Fatalf("MarshalGraph() error: %v", err)
	}
	doc, err := UnmarshalDocument(data)
	if err != nil {
		t.Fatalf("UnmarshalDocument() error: %v", err)
	}

	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Edges[0] != (DocumentEdge{From: "App", To: "Core"}) {
		t.Errorf("edge = %+v", doc.Edges[0])
	}

	rebuilt := Build(doc.Modules(), Options{})
	if !rebuilt.HasEdge(0, 1) {
		t.Error("rebuilt graph lost App->Core")
	}
	if got := rebuilt.Node(1).Module().Packages()[0].Version; got != "1.2.0" {
		t.Errorf("rebuilt Core Json = %q, want 1.2.0", got)
	}
}

func TestWriteGraphFile(t *testing.T) {
	g := Build(mods(project.NewStatic("App", nil)), Options{})
	path := filepath.Join(t.TempDir(), "graph.json")

	if err := WriteGraphFile(g, path); err != nil {
		t.Fatalf("WriteGraphFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := UnmarshalDocument(data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Nodes[0].ID != "App" || doc.Nodes[0].Group != "App" {
		t.Errorf("node = %+v", doc.Nodes[0])
	}
}
