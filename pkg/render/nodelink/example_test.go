package nodelink_test

import (
	"fmt"
	"strings"

	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/project"
	"github.com/matzehuels/projmigrate/pkg/render/nodelink"
)

func ExampleToDOT() {
	g := graph.Build([]project.Module{
		project.NewStatic("App", []string{"Core"}),
		project.NewStatic("Core", nil),
	}, graph.Options{})

	dot := nodelink.ToDOT(g, nodelink.Options{})

	for _, line := range strings.Split(dot, "\n") {
		if strings.Contains(line, "->") {
			fmt.Println(strings.TrimSpace(line))
		}
	}
	// Output:
	// "App" -> "Core";
}
