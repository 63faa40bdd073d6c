package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.trai.ch/sompack/internal/server"
	"go.trai.ch/zerr"
)

var errServerDisabled = zerr.New("management server disabled in configuration")

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the management endpoints and watch sources for changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				if !c.cfg.Server.Enabled {
					return zerr.With(errServerDisabled, "hint", "enable server in the config file or pass --addr")
				}
				addr = c.cfg.Server.Addr
			}
			watch, _ := cmd.Flags().GetBool("watch")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			srv := server.New(addr, c.app, c.logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			if watch {
				go func() {
					if err := c.app.Watch(ctx); err != nil {
						c.logger.Error(err)
						cancel()
					}
				}()
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			// Teardown order: watcher and pending invalidations first via the
			// app, then the HTTP listener, all under the configured deadline.
			shutdownCtx := context.Background()
			if c.cfg.Shutdown > 0 {
				var done context.CancelFunc
				shutdownCtx, done = context.WithTimeout(shutdownCtx, c.cfg.Shutdown)
				defer done()
			}
			if err := c.app.Shutdown(shutdownCtx); err != nil {
				c.logger.Error(err)
			}
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address for the management endpoints")
	cmd.Flags().Bool("watch", true, "Invalidate loaded modules when source files change")
	return cmd
}
