package module

import (
	"regexp"
	"sort"
	"strings"
)

// Import is one import edge found in a module's code.
type Import struct {
	// Specifier is the string as written.
	Specifier string
	// Path is the resolved absolute file path. Empty for external imports.
	Path string
	// External is true for bare package specifiers, which are not followed.
	External bool
	// Line is the 1-based line in the scanned code.
	Line int
}

var (
	// import x from 'y' / import 'y' / export { a } from 'y' / export * from 'y'
	staticImportRe = regexp.MustCompile(`(?m)(?:^|;)[ \t]*(import|export)[ \t]+(type[ \t]+)?(?:[\w*{}\s,$]+?[ \t\n]+from[ \t]*)?['"]([^'"\n]+)['"]`)

	// require('y') / __pageforge_require('y') / import('y')
	callImportRe = regexp.MustCompile(`(?:^|[^.\w$])(?:require|__pageforge_require|import)\s*\(\s*['"]([^'"\n]+)['"]\s*\)`)
)

type foundImport struct {
	specifier string
	offset    int
}

// scanImports returns the import specifiers in code, in source order and
// without duplicates. Type-only imports are skipped.
func scanImports(code string) []foundImport {
	clean := blankComments(code)
	seen := make(map[string]bool)
	var found []foundImport

	add := func(spec string, offset int) {
		if spec == "" || seen[spec] {
			return
		}
		seen[spec] = true
		found = append(found, foundImport{specifier: spec, offset: offset})
	}

	for _, m := range staticImportRe.FindAllStringSubmatchIndex(clean, -1) {
		if m[4] >= 0 {
			continue // import type
		}
		add(clean[m[6]:m[7]], m[6])
	}
	for _, m := range callImportRe.FindAllStringSubmatchIndex(clean, -1) {
		add(clean[m[2]:m[3]], m[2])
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })
	return found
}

// lineAt returns the 1-based line containing offset.
func lineAt(code string, offset int) int {
	if offset > len(code) {
		offset = len(code)
	}
	return strings.Count(code[:offset], "\n") + 1
}

// blankComments replaces line and block comments with spaces, keeping
// newlines so offsets and line numbers still line up with code. String and
// template literals are left alone.
func blankComments(code string) string {
	out := []byte(code)
	n := len(out)
	for i := 0; i < n; {
		switch c := out[i]; {
		case c == '\'' || c == '"' || c == '`':
			i++
			for i < n && out[i] != c {
				if out[i] == '\\' {
					i++
				} else if out[i] == '\n' && c != '`' {
					break
				}
				i++
			}
			i++
		case c == '/' && i+1 < n && out[i+1] == '/':
			for i < n && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case c == '/' && i+1 < n && out[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			i += 2
			for i < n && !(out[i] == '*' && i+1 < n && out[i+1] == '/') {
				if out[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
			if i < n {
				out[i], out[i+1] = ' ', ' '
				i += 2
			}
		default:
			i++
		}
	}
	return string(out)
}
