// Package pipeline runs projmigrate's migration and diagram stages.
//
// The CLI and the diagnostics server share this package so both apply the
// same stages in the same order:
//
//  1. Discover: find project files under the workspace directory
//  2. Load: parse each project, excluding the unparseable ones
//  3. Convert: rewrite legacy projects into SDK style in memory
//  4. Build: link the projects into a dependency graph
//  5. Reconcile: raise package versions until neighbors agree
//  6. Prune: delete files the converted projects no longer reference
//  7. Save: write every changed project back to disk
//
// Failures scoped to one project are reported as diagnostics and exclude
// that project; only an invalid workspace or a cancelled context ends the
// run.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Migrate(ctx, pipeline.Options{Dir: "src", DryRun: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg, err := runner.Diagram(ctx, result.Graph, pipeline.DiagramOptions{Format: "svg"})
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/msbuild"
	"github.com/matzehuels/projmigrate/pkg/reconcile"
)

// Stage names reported to hooks and in Stats.
const (
	StageDiscover  = "discover"
	StageLoad      = "load"
	StageConvert   = "convert"
	StageBuild     = "build"
	StageReconcile = "reconcile"
	StagePrune     = "prune"
	StageSave      = "save"
)

// Format constants for diagram output.
const (
	FormatPUML = "puml"
	FormatDOT  = "dot"
	FormatJSON = "json"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

// ValidFormats is the set of supported diagram formats.
var ValidFormats = map[string]bool{
	FormatPUML: true,
	FormatDOT:  true,
	FormatJSON: true,
	FormatSVG:  true,
	FormatPNG:  true,
}

// ContentTypes maps diagram formats to HTTP content types.
var ContentTypes = map[string]string{
	FormatPUML: "text/plain; charset=utf-8",
	FormatDOT:  "text/vnd.graphviz; charset=utf-8",
	FormatJSON: "application/json",
	FormatSVG:  "image/svg+xml",
	FormatPNG:  "image/png",
}

// ValidateFormat checks that a diagram format is supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: puml, dot, json, svg, png)", format)
	}
	return nil
}

// =============================================================================
// Options
// =============================================================================

// Options configures a migration run.
type Options struct {
	// Dir is the workspace directory searched for project files.
	Dir string

	// Projects restricts the run to the named projects. Nil selects all.
	Projects []string

	// Convert configures the legacy-to-SDK conversion.
	Convert msbuild.Options

	// SkipConvert only reconciles versions; legacy projects are left as they
	// are.
	SkipConvert bool

	// Prune deletes files converted projects no longer reference.
	Prune          bool
	PruneItemTypes []string

	// Reconcile configures version reconciliation. Its Sink is replaced by
	// the run's sink.
	Reconcile reconcile.Options

	// DryRun runs every stage in memory and writes nothing.
	DryRun bool

	// Sink receives diagnostics as they are reported, in addition to
	// Result.Diagnostics.
	Sink diag.Sink
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outcome of a migration run.
type Result struct {
	// RunID identifies the run in logs and reports.
	RunID string `json:"run_id"`

	Dir    string `json:"dir"`
	DryRun bool   `json:"dry_run"`

	// Projects lists every loaded project in discovery order.
	Projects []ProjectResult `json:"projects"`

	// Graph is the dependency graph of the projects that took part in
	// reconciliation.
	Graph *graph.Graph `json:"-"`

	Reconcile   reconcile.Result  `json:"reconcile"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Stats       Stats             `json:"stats"`
}

// ProjectResult is the outcome for one project.
type ProjectResult struct {
	Name string `json:"name"`
	Path string `json:"path"`

	// Style is the project style before conversion.
	Style string `json:"style"`

	Converted bool `json:"converted"`

	// Excluded is set when the project failed and took no further part in
	// the run; Error holds the reason.
	Excluded bool   `json:"excluded"`
	Error    string `json:"error,omitempty"`

	Upgrades int      `json:"upgrades"`
	Pruned   []string `json:"pruned,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
	Saved    bool     `json:"saved"`
}

// Changed reports whether the run modified the project.
func (p ProjectResult) Changed() bool {
	return !p.Excluded && (p.Converted || p.Upgrades > 0)
}

// Stats contains run counts and stage timings.
type Stats struct {
	Discovered int         `json:"discovered"`
	Loaded     int         `json:"loaded"`
	Converted  int         `json:"converted"`
	Excluded   int         `json:"excluded"`
	Pruned     int         `json:"pruned"`
	Saved      int         `json:"saved"`
	Stages     []StageTime `json:"stages"`
}

// StageTime is the wall time spent in one stage.
type StageTime struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Duration returns the time spent in stage, zero if it did not run.
func (s Stats) Duration(stage string) time.Duration {
	for _, st := range s.Stages {
		if st.Stage == stage {
			return st.Duration
		}
	}
	return 0
}

// Project returns the result for the named project.
func (r *Result) Project(name string) (*ProjectResult, bool) {
	for i := range r.Projects {
		if strings.EqualFold(r.Projects[i].Name, name) {
			return &r.Projects[i], true
		}
	}
	return nil, false
}

// =============================================================================
// Diagram Options
// =============================================================================

// DiagramOptions configures diagram rendering.
type DiagramOptions struct {
	Format string `json:"format"`

	// Detailed adds package references to DOT based node labels.
	Detailed bool `json:"detailed,omitempty"`

	// Separator splits module names into groups. Empty uses the default.
	Separator string `json:"separator,omitempty"`

	// Highlight names modules drawn emphasized in DOT based output.
	Highlight []string `json:"highlight,omitempty"`

	// Refresh bypasses cached diagrams.
	Refresh bool `json:"refresh,omitempty"`
}
