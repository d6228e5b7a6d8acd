package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/pipeline"
	"github.com/matzehuels/projmigrate/pkg/workspace"
)

// migrateFlags holds the flags shared by convert and sync.
type migrateFlags struct {
	projects    []string
	dryRun      bool
	prune       bool
	pruneSet    bool
	interactive bool
}

func (f *migrateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.projects, "project", "p", nil, "limit the run to the named projects (repeatable)")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "report what would change without writing anything")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "choose the projects to migrate")
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var f migrateFlags

	cmd := &cobra.Command{
		Use:   "convert <dir>",
		Short: "Convert legacy projects to SDK style and reconcile package versions",
		Long: `Convert rewrites every legacy .csproj under dir into an SDK style project,
links the projects through their ProjectReference items and raises package
versions until neighboring projects agree.

Projects that cannot be converted are reported and left untouched.`,
		Example: `  # Convert a solution in place
  projmigrate convert ./src

  # Preview the changes
  projmigrate convert ./src --dry-run

  # Convert and delete files the new projects no longer reference
  projmigrate convert ./src --prune`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.pruneSet = cmd.Flags().Changed("prune")
			return c.runMigrate(cmd, argDir(args), f, false)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.prune, "prune", false, "delete files converted projects no longer reference")

	return cmd
}

// syncCommand creates the sync command.
func (c *CLI) syncCommand() *cobra.Command {
	var f migrateFlags

	cmd := &cobra.Command{
		Use:   "sync <dir>",
		Short: "Reconcile package versions without converting projects",
		Long: `Sync links the projects under dir and raises package versions until
neighboring projects agree. Legacy projects keep their format.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMigrate(cmd, argDir(args), f, true)
		},
	}

	f.register(cmd)

	return cmd
}

// runMigrate runs a migration over dir and prints its summary. Project
// failures are reported but do not fail the command.
func (c *CLI) runMigrate(cmd *cobra.Command, dir string, f migrateFlags, skipConvert bool) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if err := errors.ValidateWorkspaceDir(dir); err != nil {
		return err
	}
	cfg, err := c.loadConfig(dir)
	if err != nil {
		return err
	}

	opts := cfg.MigrateOptions(dir)
	opts.SkipConvert = skipConvert
	opts.DryRun = f.dryRun
	opts.Projects = f.projects
	if f.pruneSet {
		opts.Prune = f.prune
	}
	opts.Sink = diag.NewLogSink(logger)

	if f.interactive {
		names, err := pickProjects(ctx, dir, f.projects)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			printWarning("No projects selected")
			return nil
		}
		opts.Projects = names
	}

	runner := pipeline.NewRunner(nil, nil, logger)
	defer runner.Close()

	prog := newProgress(logger)
	res, err := runner.Migrate(ctx, opts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Processed %d projects", res.Stats.Loaded))

	printMigrateSummary(res)
	if res.DryRun && hasChanges(res) {
		printNextStep("Apply the changes", fmt.Sprintf("%s %s %s", appName, cmd.Name(), dir))
	}
	return nil
}

// pickProjects loads the workspace and lets the user choose projects.
func pickProjects(ctx context.Context, dir string, filter []string) ([]string, error) {
	paths, err := workspace.Discover(ctx, dir)
	if err != nil {
		return nil, err
	}
	projects, err := workspace.Load(ctx, paths, diag.Discard)
	if err != nil {
		return nil, err
	}
	if len(filter) > 0 {
		projects = workspace.Filter(projects, filter)
	}
	if len(projects) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no projects found under %s", dir)
	}
	return runProjectPicker(projects)
}

func hasChanges(res *pipeline.Result) bool {
	for _, p := range res.Projects {
		if p.Changed() {
			return true
		}
	}
	return false
}
