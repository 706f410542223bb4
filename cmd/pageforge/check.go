package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pageforge/internal/errors"
)

// checkView is the JSON shape of one failed page.
type checkView struct {
	Pattern string        `json:"pattern"`
	File    string        `json:"file"`
	Error   *errors.Error `json:"-"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message"`
	Where   string        `json:"location,omitempty"`
}

func checkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [pages-dir]",
		Short: "Load every page and report boundary and compile errors",
		Long: `Load every routed page through the module graph. Reports client
modules that import server modules, JSX compile errors and unresolvable
imports. Exits non-zero when any page fails.

Examples:
  pageforge check
  pageforge check ./pages --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd.Context(), cmd, opts, args)
			if err != nil {
				return err
			}
			defer e.Close()

			results := e.Check(cmd.Context())
			var failed []checkView
			for _, r := range results {
				if r.Err == nil {
					continue
				}
				ce := errors.Classify(r.Err)
				failed = append(failed, checkView{
					Pattern: r.Route.Pattern,
					File:    r.Route.RelPath,
					Error:   ce,
					Code:    ce.Code,
					Message: ce.Message,
					Where:   ce.Location.String(),
				})
			}

			w := cmd.OutOrStdout()
			if opts.format == "json" {
				if err := writeJSON(w, map[string]any{
					"pages":  len(results),
					"failed": failed,
				}); err != nil {
					return err
				}
			} else {
				for _, f := range failed {
					errorMsg(w, "%s (%s)", f.Pattern, f.File)
					fmt.Fprint(w, f.Error.Format())
				}
				if len(failed) == 0 {
					success(w, "%d pages ok", len(results))
				}
			}

			if len(failed) > 0 {
				return errors.New("E142").
					WithDetail(strconv.Itoa(len(failed)) + " of " + strconv.Itoa(len(results)) + " pages failed")
			}
			return nil
		},
	}
}
