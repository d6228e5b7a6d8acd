package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/projmigrate/pkg/config"
	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/pipeline"
	"github.com/matzehuels/projmigrate/pkg/reconcile"
)

// graphFlags holds the graph command's flags.
type graphFlags struct {
	format     string
	output     string
	separator  string
	detailed   bool
	reconciled bool
	from       string
	noCache    bool
	refresh    bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var f graphFlags

	cmd := &cobra.Command{
		Use:   "graph [dir]",
		Short: "Render the project dependency graph",
		Long: `Graph links the projects under dir and renders the result as a PlantUML
component diagram, Graphviz DOT, JSON, SVG or PNG.

Text formats are written to stdout unless --output is given. Rendered diagrams
are cached by graph content.

A graph exported with --format json can be rendered again with --from,
without the projects that produced it.`,
		Example: `  # PlantUML to stdout
  projmigrate graph ./src

  # SVG highlighting the projects a sync would change
  projmigrate graph ./src -f svg --reconciled -o deps.svg

  # Export once, render later
  projmigrate graph ./src -f json -o deps.json
  projmigrate graph --from deps.json -f png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd, argDir(args), f)
		},
	}

	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: puml, dot, json, svg or png")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default: stdout for text formats, graph.<format> otherwise)")
	cmd.Flags().StringVar(&f.separator, "separator", "", "name separator used to group projects")
	cmd.Flags().BoolVar(&f.detailed, "detailed", false, "list package references in node labels")
	cmd.Flags().BoolVar(&f.reconciled, "reconciled", false, "render the graph after reconciliation and highlight changed projects")
	cmd.Flags().StringVar(&f.from, "from", "", "render a graph exported with --format json instead of scanning dir")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the diagram cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "re-render even if a cached diagram exists")

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, dir string, f graphFlags) error {
	ctx := cmd.Context()

	if f.from == "" {
		if err := errors.ValidateWorkspaceDir(dir); err != nil {
			return err
		}
	}
	cfg, err := c.loadConfig(dir)
	if err != nil {
		return err
	}

	opts := cfg.DiagramOptions()
	if f.format != "" {
		opts.Format = f.format
	}
	if f.separator != "" {
		opts.Separator = f.separator
	}
	if cmd.Flags().Changed("detailed") {
		opts.Detailed = f.detailed
	}
	opts.Refresh = f.refresh
	if err := pipeline.ValidateFormat(opts.Format); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "unsupported diagram format")
	}

	runner, err := c.newRunner(ctx, cfg, f.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	var (
		g         *graph.Graph
		highlight []string
	)
	if f.from != "" {
		g, highlight, err = graphFromFile(ctx, cfg, f.from, f.reconciled)
	} else {
		g, highlight, err = c.workspaceGraph(ctx, runner, cfg, dir, f.reconciled)
	}
	if err != nil {
		return err
	}
	opts.Highlight = highlight

	if opts.Format == pipeline.FormatJSON && f.output != "" {
		if err := graph.WriteGraphFile(g, f.output); err != nil {
			return err
		}
		printSuccess("Exported graph")
		printFile(f.output)
		printStats(g.Len(), len(g.Edges()), false)
		return nil
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", opts.Format))
	spinner.Start()
	data, cached, err := runner.DiagramWithCacheInfo(ctx, g, opts)
	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			return ctx.Err()
		}
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	output := f.output
	if output == "" {
		if isTextFormat(opts.Format) {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		output = "graph." + opts.Format
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printSuccess("Rendered %s", strings.ToUpper(opts.Format))
	printFile(output)
	printStats(g.Len(), len(g.Edges()), cached)
	return nil
}

// workspaceGraph returns the graph to render. A reconciled graph comes from
// a dry-run migration, along with the projects that run would change.
func (c *CLI) workspaceGraph(ctx context.Context, runner *pipeline.Runner, cfg config.Config, dir string, reconciled bool) (*graph.Graph, []string, error) {
	logger := loggerFromContext(ctx)
	if !reconciled {
		g, err := runner.Graph(ctx, dir, diag.NewLogSink(logger))
		return g, nil, err
	}

	opts := cfg.MigrateOptions(dir)
	opts.DryRun = true
	opts.Sink = diag.NewLogSink(logger)
	res, err := runner.Migrate(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	var changed []string
	for _, p := range res.Projects {
		if p.Changed() {
			changed = append(changed, p.Name)
		}
	}
	return res.Graph, changed, nil
}

// graphFromFile rebuilds a graph from an exported JSON document. With
// reconciled set the versions are aligned in memory only; the modules it
// upgraded are returned for highlighting.
func graphFromFile(ctx context.Context, cfg config.Config, path string, reconciled bool) (*graph.Graph, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	doc, err := graph.UnmarshalDocument(data)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path)
	}

	sink := diag.NewLogSink(loggerFromContext(ctx))
	g := graph.Build(doc.Modules(), graph.Options{Sink: sink})
	if !reconciled {
		return g, nil, nil
	}

	ro := cfg.ReconcileOptions()
	ro.Sink = sink
	res := reconcile.New(ro).Run(g)
	var changed []string
	for _, u := range res.Upgrades {
		if !slices.Contains(changed, u.Module) {
			changed = append(changed, u.Module)
		}
	}
	return g, changed, nil
}

func isTextFormat(format string) bool {
	switch format {
	case pipeline.FormatPUML, pipeline.FormatDOT, pipeline.FormatJSON:
		return true
	}
	return false
}
