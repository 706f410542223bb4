// Package jsx compiles JSX element syntax embedded in JavaScript source into
// plain element-creation calls.
//
// The compiler is a narrow recursive-descent scanner, not a JavaScript
// parser. It tracks just enough lexical state (strings, templates, comments,
// regular expressions and the previous significant token) to tell where JSX
// begins, and copies all other code through unchanged:
//
//	function Page() { return <div id="x">hi {1+2}</div>; }
//
// becomes
//
//	function Page() { return React.createElement('div', {'id': 'x'}, 'hi ', 1+2); }
//
// Compile is pure and deterministic: it performs no I/O.
package jsx

import (
	"strings"

	"github.com/vango-dev/pageforge/pkg/directive"
)

// Defaults for Options.
const (
	DefaultPragma         = "React.createElement"
	DefaultFragment       = "React.Fragment"
	DefaultRequireWrapper = "__pageforge_require"
)

// Options configures code generation.
type Options struct {
	// Pragma is the element-creation function.
	Pragma string

	// Fragment is the expression passed as the tag of <>...</>.
	Fragment string

	// RequireWrapper replaces the require identifier in require('react')
	// calls so the host can intercept resolution. Empty disables the rewrite.
	RequireWrapper string

	// BindReact injects a React binding when JSX was emitted and the source
	// does not import react itself.
	BindReact bool
}

// DefaultOptions returns the options used by Compile.
func DefaultOptions() Options {
	return Options{
		Pragma:         DefaultPragma,
		Fragment:       DefaultFragment,
		RequireWrapper: DefaultRequireWrapper,
		BindReact:      true,
	}
}

// Compiler compiles sources with fixed options. It is safe for concurrent use.
type Compiler struct {
	opts Options
}

// New returns a compiler. Empty Pragma and Fragment fall back to defaults.
func New(opts Options) *Compiler {
	if opts.Pragma == "" {
		opts.Pragma = DefaultPragma
	}
	if opts.Fragment == "" {
		opts.Fragment = DefaultFragment
	}
	return &Compiler{opts: opts}
}

// Compile compiles src with DefaultOptions.
func Compile(src string) (string, error) {
	return New(DefaultOptions()).Compile(src)
}

// Compile rewrites every JSX element in src. Source without JSX and without
// a react require is returned byte for byte.
func (c *Compiler) Compile(src string) (string, error) {
	out, _, err := c.CompileStats(src)
	return out, err
}

// Stats reports what a compilation did.
type Stats struct {
	Elements        int
	RewroteRequires int
}

// CompileStats compiles src and also reports what was rewritten.
func (c *Compiler) CompileStats(src string) (string, Stats, error) {
	cc := &compiler{opts: c.opts, src: src}
	out, _, err := cc.code(0, false)
	if err != nil {
		return "", Stats{}, err
	}
	stats := Stats{Elements: cc.elements, RewroteRequires: cc.requires}
	if prelude := c.prelude(src, cc); prelude != "" {
		out = insertAfterPrologue(out, prelude)
	}
	return out, stats, nil
}

func (c *Compiler) prelude(src string, cc *compiler) string {
	bindReact := c.opts.BindReact && cc.elements > 0 &&
		strings.HasPrefix(c.opts.Pragma, "React.") && !hasReactBinding(src)
	wrapper := c.opts.RequireWrapper
	if wrapper == "" {
		if bindReact {
			return "const React=globalThis.__PAGEFORGE_REACT__||require('react');\n" +
				"globalThis.__PAGEFORGE_REACT__=React;\n"
		}
		return ""
	}
	if cc.requires == 0 && !bindReact {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("const " + wrapper + "=(typeof globalThis.__PAGEFORGE_REQUIRE__==='function')?" +
		"globalThis.__PAGEFORGE_REQUIRE__:" +
		"(typeof require==='function'&&require.main&&typeof require.main.require==='function')?" +
		"require.main.require.bind(require.main):require;\n")
	if bindReact {
		sb.WriteString("const React=globalThis.__PAGEFORGE_REACT__||" + wrapper + "('react');\n")
		sb.WriteString("globalThis.__PAGEFORGE_REACT__=React;\n")
	}
	return sb.String()
}

func hasReactBinding(src string) bool {
	for _, p := range []string{`require('react')`, `require("react")`, `from 'react'`, `from "react"`} {
		if strings.Contains(src, p) {
			return true
		}
	}
	return false
}

// insertAfterPrologue places prelude after the directive prologue so
// directives stay first.
func insertAfterPrologue(out, prelude string) string {
	end := directive.PrologueEnd(out)
	if end == 0 {
		return prelude + out
	}
	head := strings.TrimRight(out[:end], " \t")
	if strings.HasSuffix(head, "\n") {
		return head + prelude + out[len(head):]
	}
	rest := strings.TrimLeft(out[end:], " \t")
	if strings.HasPrefix(rest, "\n") {
		end = len(out) - len(rest) + 1
		return out[:end] + prelude + out[end:]
	}
	return out[:end] + "\n" + prelude + out[end:]
}
