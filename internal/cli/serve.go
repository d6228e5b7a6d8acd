package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/projmigrate/internal/server"
	"github.com/matzehuels/projmigrate/pkg/config"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/observability"
	"github.com/matzehuels/projmigrate/pkg/observability/prom"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve graph diagrams, reconciliation reports and metrics over HTTP",
		Long: `Serve exposes the workspace in dir over HTTP:

  GET /healthz               liveness and build information
  GET /graph.{format}        dependency diagram (puml, dot, json, svg, png)
  GET /report                dry-run migration report
  GET /metrics               Prometheus metrics

The server never writes to the workspace.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := argDir(args)

			if err := errors.ValidateWorkspaceDir(dir); err != nil {
				return err
			}
			cfg, err := c.loadConfig(dir)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			prom.New(reg).Install()
			defer observability.Reset()

			runner, err := c.newRunner(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			return server.New(dir, cfg, runner, c.Logger, reg).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config or $"+config.EnvAddr+")")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the diagram cache")

	return cmd
}
