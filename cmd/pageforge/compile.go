package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pageforge/internal/errors"
	"github.com/vango-dev/pageforge/pkg/directive"
	"github.com/vango-dev/pageforge/pkg/jsx"
	"github.com/vango-dev/pageforge/pkg/module"
)

func compileCmd(opts *rootOptions) *cobra.Command {
	var (
		pragma   string
		fragment string
		stats    bool
	)

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a JSX file and print the result",
		Long: `Compile one JSX source file and print the generated JavaScript.

Examples:
  pageforge compile pages/index.jsx
  pageforge compile widget.jsx --pragma h --fragment Fragment`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return errors.New("E144").WithDetail(err.Error()).Wrap(err)
			}

			jopts := jsx.DefaultOptions()
			if pragma != "" {
				jopts.Pragma = pragma
			}
			if fragment != "" {
				jopts.Fragment = fragment
			}
			out, st, err := jsx.New(jopts).CompileStats(string(src))
			if err != nil {
				// Attach the path so the error points into the file.
				return &module.LoadError{Path: path, Err: err}
			}

			w := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(w, map[string]any{
					"file":      path,
					"directive": directive.DetectBytes(src).String(),
					"elements":  st.Elements,
					"requires":  st.RewroteRequires,
					"code":      out,
				})
			}
			fmt.Fprint(w, out)
			if stats {
				fmt.Fprintf(cmd.ErrOrStderr(), "// %d elements, %d requires rewritten, directive %s\n",
					st.Elements, st.RewroteRequires, directive.DetectBytes(src))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pragma, "pragma", "", "Element factory (default React.createElement)")
	cmd.Flags().StringVar(&fragment, "fragment", "", "Fragment expression (default React.Fragment)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print compile statistics to stderr")
	return cmd
}
