package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pageforge/internal/errors"
	"github.com/vango-dev/pageforge/pkg/engine"
	"github.com/vango-dev/pageforge/pkg/router"
)

// routeView is the JSON shape of one route.
type routeView struct {
	Pattern string            `json:"pattern"`
	File    string            `json:"file"`
	Params  []string          `json:"params,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
}

func viewOf(e *router.Entry) routeView {
	return routeView{Pattern: e.Pattern, File: e.RelPath, Params: e.ParamNames}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openEngine builds an engine for one-shot commands: no watcher, no
// runner, quiet unless verbose.
func openEngine(ctx context.Context, cmd *cobra.Command, opts *rootOptions, args []string) (*engine.Engine, error) {
	pagesArg := ""
	if len(args) > 0 {
		pagesArg = args[0]
	}
	cfg, err := loadProject(opts.dir, pagesArg)
	if err != nil {
		return nil, err
	}
	logOut := io.Discard
	if opts.verbose {
		logOut = cmd.ErrOrStderr()
	}
	logger := newLogger(logOut, opts.verbose)
	eopts, err := engineOptions(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	eopts.RescanEachRequest = false
	return engine.New(eopts)
}

func routesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes [pages-dir]",
		Short: "List the route table",
		Long: `List every route derived from the pages directory, in match order.

Examples:
  pageforge routes
  pageforge routes ./pages --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context(), cmd, opts, args)
			if err != nil {
				return err
			}
			defer e.Close()
			return printRoutes(cmd.OutOrStdout(), e.Routes().Routes(), opts.format)
		},
	}
}

func printRoutes(w io.Writer, routes []*router.Entry, format string) error {
	if format == "json" {
		views := make([]routeView, 0, len(routes))
		for _, r := range routes {
			views = append(views, viewOf(r))
		}
		return writeJSON(w, views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tFILE\tPARAMS")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Pattern, r.RelPath, strings.Join(r.ParamNames, ","))
	}
	return tw.Flush()
}

func matchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <path> [pages-dir]",
		Short: "Show which page serves a URL path",
		Long: `Resolve a URL path against the route table and print the page file
and extracted parameters.

Examples:
  pageforge match /blog/hello-world
  pageforge match /docs/a/b/c --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context(), cmd, opts, args[1:])
			if err != nil {
				return err
			}
			defer e.Close()

			m, ok := e.Match(args[0])
			if !ok {
				return errors.New("E143").WithDetail("No page matches " + args[0])
			}
			w := cmd.OutOrStdout()
			if opts.format == "json" {
				v := viewOf(m.Route)
				v.Values = m.Params
				return writeJSON(w, v)
			}
			fmt.Fprintf(w, "%s -> %s\n", m.Route.Pattern, m.Route.RelPath)
			for _, name := range m.Route.ParamNames {
				if v, ok := m.Params[name]; ok {
					info(w, "%s = %q", name, v)
				}
			}
			return nil
		},
	}
}
