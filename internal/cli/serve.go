package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/downline/internal/server"
	"github.com/matzehuels/downline/pkg/pipeline"
)

// serveCommand creates the serve command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the downline API over HTTP",
		Long: `Serve the downline API over HTTP.

Members are kept in the configured store and renders in the configured
cache, so several instances can share a Postgres or Mongo store and a Redis
cache. Requests identify their owner with the X-Owner-ID header (see
server.owner_header).

Routes:
  GET    /api/mlm-data             the owner's tree
  POST   /api/members              add a member
  DELETE /api/members?id=          delete a member and its downlines
  PATCH  /api/members              move a member to a new parent
  GET    /api/check-parent?id=     check that a parent exists
  GET    /api/available-parents?level=
  POST   /api/initialize-user      create or rename the owner's root
  GET    /api/layout?focus=        bubble layout as JSON
  GET    /tree.{svg,png,pdf,json}  rendered diagram; bubbles link to their focus`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg := c.config()
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			svc, st, err := c.newService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			ch, err := c.newCache(ctx, noCache)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			runner := pipeline.NewRunner(ch, nil, logger)
			defer runner.Close()

			srv := server.New(svc, runner, cfg.Server,
				server.WithLogger(logger),
				server.WithRenderDefaults(cfg.Render))

			logger.Info("starting server",
				"store", cfg.Store.Driver,
				"cache", cfg.Cache.Driver,
				"owner_header", cfg.Server.OwnerHeader)
			prog := newProgress(logger)
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			prog.done("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}
