// Package cli implements the projmigrate command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/projmigrate/pkg/buildinfo"
	"github.com/matzehuels/projmigrate/pkg/cache"
	"github.com/matzehuels/projmigrate/pkg/config"
	"github.com/matzehuels/projmigrate/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag; empty looks for projmigrate.toml in
	// the workspace directory.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "projmigrate converts legacy .csproj files and reconciles package versions",
		Long: `projmigrate rewrites legacy .NET Framework project files into SDK style,
links the projects of a workspace into a dependency graph and raises package
versions until every project agrees with its neighbors.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFiles(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "configuration file (default: <dir>/"+config.FileName+")")

	// Register all subcommands
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.syncCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration & Runner Factory
// =============================================================================

// loadConfig loads the configuration for the workspace in dir.
func (c *CLI) loadConfig(dir string) (config.Config, error) {
	cfg, err := config.Load(dir, c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Source != "" {
		c.Logger.Debug("loaded configuration", "file", cfg.Source)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	store, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	runner := pipeline.NewRunner(store, nil, c.Logger)
	runner.TTL = cfg.Cache.TTL
	return runner, nil
}

func newCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	return cfg.Cache.Open(ctx)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the file cache directory, honoring PROJMIGRATE_CACHE_DIR
// and XDG_CACHE_HOME (~/.cache/projmigrate/).
func (c *CLI) cacheDir() (string, error) {
	cfg, err := c.loadConfig("")
	if err != nil {
		return "", err
	}
	return cfg.Cache.CacheDir()
}

// argDir returns the workspace argument, empty when it is missing.
func argDir(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
