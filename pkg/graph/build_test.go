package graph

import (
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/project"
)

func mods(ms ...*project.Static) []project.Module {
	out := make([]project.Module, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}

func names(g *Graph, idx []int) []string {
	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = g.Node(n).Name()
	}
	return out
}

func TestBuildSymmetricEdges(t *testing.T) {
	g := Build(mods(
		project.NewStatic("App", []string{"Core", "Utils"}),
		project.NewStatic("Core", nil),
		project.NewStatic("Utils", []string{"Core"}),
	), Options{})

	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}

	for _, e := range g.Edges() {
		if !slices.Contains(g.DependedOnBy(e.To), e.From) {
			t.Errorf("edge %s->%s missing from dependedOnBy", g.Node(e.From).Name(), g.Node(e.To).Name())
		}
	}
	for i := range g.Len() {
		for _, from := range g.DependedOnBy(i) {
			if !g.HasEdge(from, i) {
				t.Errorf("dependedOnBy %s<-%s has no forward edge", g.Node(i).Name(), g.Node(from).Name())
			}
		}
	}

	app, _ := g.Lookup("App")
	if got := names(g, g.DependsOn(app.Index())); !slices.Equal(got, []string{"Core", "Utils"}) {
		t.Errorf("App.DependsOn = %v, want [Core Utils]", got)
	}
	core, _ := g.Lookup("core")
	if got := names(g, g.DependedOnBy(core.Index())); !slices.Equal(got, []string{"App", "Utils"}) {
		t.Errorf("Core.DependedOnBy = %v, want [App Utils]", got)
	}
}

func TestBuildDeduplicatesRepeatedDeclarations(t *testing.T) {
	g := Build(mods(
		project.NewStatic("App", []string{"Core", "core", "CORE"}),
		project.NewStatic("Core", nil),
	), Options{})

	if got := len(g.DependsOn(0)); got != 1 {
		t.Errorf("len(App.DependsOn) = %d, want 1", got)
	}
	if got := len(g.DependedOnBy(1)); got != 1 {
		t.Errorf("len(Core.DependedOnBy) = %d, want 1", got)
	}
	if got := len(g.Edges()); got != 1 {
		t.Errorf("len(Edges) = %d, want 1", got)
	}
}

func TestBuildNoSelfLoops(t *testing.T) {
	var sink diag.Collector
	g := Build(mods(
		project.NewStatic("App", []string{"App", "app"}),
	), Options{Sink: &sink})

	if len(g.DependsOn(0)) != 0 || len(g.DependedOnBy(0)) != 0 {
		t.Errorf("self reference produced an edge: %v / %v", g.DependsOn(0), g.DependedOnBy(0))
	}
	if got := sink.Count(diag.Warning); got != 2 {
		t.Errorf("warnings = %d, want 2", got)
	}
}

func TestBuildMissingTargetReportedOnce(t *testing.T) {
	var sink diag.Collector
	g := Build(mods(
		project.NewStatic("App", []string{"Widgets"}),
		project.NewStatic("Admin", []string{"widgets"}),
	), Options{Sink: &sink})

	warnings := sink.Filter(diag.Warning)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
	if warnings[0].Module != "App" || !strings.Contains(warnings[0].Message, "Widgets") {
		t.Errorf("warning = %v, want one naming App and Widgets", warnings[0])
	}
	if len(g.Edges()) != 0 {
		t.Errorf("Edges() = %v, want none", g.Edges())
	}
}

func TestBuildDuplicateNames(t *testing.T) {
	var sink diag.Collector
	first := project.NewStatic("Core", nil)
	g := Build(mods(
		first,
		project.NewStatic("CORE", nil),
		project.NewStatic("App", []string{"Core"}),
	), Options{Sink: &sink})

	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	if n, _ := g.Lookup("core"); n.Module() != first {
		t.Error("Lookup(core) did not return the first module")
	}
	if got := sink.Count(diag.Error); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestBuildRejectsInvalidNames(t *testing.T) {
	var sink diag.Collector
	g := Build(mods(
		project.NewStatic("", nil),
		project.NewStatic("App", nil),
	), Options{Sink: &sink})

	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
	if sink.Count(diag.Error) != 1 {
		t.Errorf("errors = %d, want 1", sink.Count(diag.Error))
	}
}

func TestNeighbors(t *testing.T) {
	// A <-> B cycle plus C -> A
	g := Build(mods(
		project.NewStatic("A", []string{"B"}),
		project.NewStatic("B", []string{"A"}),
		project.NewStatic("C", []string{"A"}),
	), Options{})

	if got := g.Neighbors(0); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("Neighbors(A) = %v, want [1 2]", got)
	}
	if got := g.Neighbors(2); !slices.Equal(got, []int{0}) {
		t.Errorf("Neighbors(C) = %v, want [0]", got)
	}
}

func TestGroups(t *testing.T) {
	g := Build(mods(
		project.NewStatic("Contoso.Web", nil),
		project.NewStatic("Tools", nil),
		project.NewStatic("Contoso.Core", nil),
	), Options{})

	groups := g.Groups("")
	if len(groups) != 2 {
		t.Fatalf("len(Groups) = %d, want 2", len(groups))
	}
	if groups[0].Name != "Contoso" || !slices.Equal(groups[0].Nodes, []int{0, 2}) {
		t.Errorf("groups[0] = %+v", groups[0])
	}
	if groups[1].Name != "Tools" {
		t.Errorf("groups[1].Name = %q, want Tools", groups[1].Name)
	}
}

func TestGroupOf(t *testing.T) {
	tests := []struct{ name, sep, want string }{
		{"Contoso.Core.Data", ".", "Contoso"},
		{"App", ".", "App"},
		{"web-api", "-", "web"},
		{"a.b", "", "a"},
	}
	for _, tt := range tests {
		if got := GroupOf(tt.name, tt.sep); got != tt.want {
			t.Errorf("GroupOf(%q, %q) = %q, want %q", tt.name, tt.sep, got, tt.want)
		}
	}
}
