// Package pkg provides the libraries behind projmigrate.
//
// # Overview
//
// projmigrate rewrites legacy .NET Framework project files into SDK style and
// reconciles NuGet package versions across the projects of a workspace. The
// pkg directory is organized by stage:
//
//  1. [msbuild] and [workspace] - loading, converting and saving .csproj files
//  2. [graph] and [reconcile] - the project dependency graph and version propagation
//  3. [render] - PlantUML, DOT, SVG and PNG views of the graph
//  4. [pipeline] - orchestration (discover → load → convert → build → reconcile → prune → save)
//  5. [cache], [config], [diag], [errors], [observability] - shared infrastructure
//
// # Architecture
//
//	Workspace directory
//	         ↓
//	    [workspace] (discover and load projects)
//	         ↓
//	    [msbuild] (legacy → SDK conversion)
//	         ↓
//	    [graph] (link ProjectReference items)
//	         ↓
//	    [reconcile] (raise versions until neighbors agree)
//	         ↓
//	    saved projects, diagnostics, diagrams
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	res, err := runner.Migrate(ctx, pipeline.Options{
//	    Dir:    "./src",
//	    DryRun: true,
//	    Sink:   diag.NewLogSink(logger),
//	})
//
// [msbuild]: github.com/matzehuels/projmigrate/pkg/msbuild
// [workspace]: github.com/matzehuels/projmigrate/pkg/workspace
// [graph]: github.com/matzehuels/projmigrate/pkg/graph
// [reconcile]: github.com/matzehuels/projmigrate/pkg/reconcile
// [render]: github.com/matzehuels/projmigrate/pkg/render
// [pipeline]: github.com/matzehuels/projmigrate/pkg/pipeline
// [cache]: github.com/matzehuels/projmigrate/pkg/cache
// [config]: github.com/matzehuels/projmigrate/pkg/config
// [diag]: github.com/matzehuels/projmigrate/pkg/diag
// [errors]: github.com/matzehuels/projmigrate/pkg/errors
// [observability]: github.com/matzehuels/projmigrate/pkg/observability
package pkg
