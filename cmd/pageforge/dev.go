package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pageforge/internal/dev"
	"github.com/vango-dev/pageforge/internal/errors"
	"github.com/vango-dev/pageforge/internal/metrics"
	"github.com/vango-dev/pageforge/pkg/engine"
)

func devCmd(opts *rootOptions) *cobra.Command {
	var (
		port    int
		host    string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start the development server.

The server watches the project, invalidates cached pages when files
change, and reloads connected browsers. With the watcher disabled, routes
are rebuilt on every request instead.

Examples:
  pageforge dev
  pageforge dev --port=8080
  pageforge dev --no-watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject(opts.dir, "")
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Dev.Port = port
			}
			if host != "" {
				cfg.Dev.Host = host
			}
			if noWatch {
				off := false
				cfg.Watch.Enabled = &off
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
			eopts, err := engineOptions(ctx, cfg, logger)
			if err != nil {
				return err
			}
			collector := metrics.New()
			eopts.Metrics = collector
			eopts.Runner = dev.PreviewRunner{}

			e, err := engine.New(eopts)
			if err != nil {
				return err
			}
			defer e.Close()

			if cfg.WatchEnabled() {
				if err := e.Watch(ctx); err != nil {
					return errors.New("E146").WithDetail(err.Error()).Wrap(err)
				}
			}

			srv, err := dev.NewServer(dev.Options{
				Engine:    e,
				Addr:      cfg.DevAddress(),
				PublicDir: cfg.PublicPath(),
				Metrics:   collector.Handler(),
				Reload:    cfg.WatchEnabled(),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			success(w, "pageforge dev on http://%s", cfg.DevAddress())
			info(w, "pages:   %s (%d routes)", cfg.PagesPath(), e.Routes().Len())
			info(w, "watch:   %t", cfg.WatchEnabled())
			if cfg.Production() {
				info(w, "env:     production")
			}
			fmt.Fprintln(w)

			if err := srv.Run(ctx); err != nil {
				return errors.FromError(err, "E145")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from pageforge.json or PORT)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable the filesystem watcher")
	return cmd
}
