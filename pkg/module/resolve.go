package module

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultResolveExtensions are tried, in order, when an import omits its
// extension.
var DefaultResolveExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".json"}

// isRelative reports whether specifier names a file rather than a package.
func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".." ||
		filepath.IsAbs(specifier)
}

// resolve maps an import specifier to a file. Bare specifiers are external
// and resolve to "".
func (g *Graph) resolve(importer, specifier string) (string, bool, error) {
	if !isRelative(specifier) {
		return "", true, nil
	}

	base := specifier
	if !filepath.IsAbs(base) {
		base = filepath.Join(filepath.Dir(importer), specifier)
	}
	base = filepath.Clean(base)

	if isFile(base) {
		return base, false, nil
	}
	for _, ext := range g.opts.ResolveExtensions {
		if p := base + ext; isFile(p) {
			return p, false, nil
		}
	}
	for _, ext := range g.opts.ResolveExtensions {
		if p := filepath.Join(base, "index"+ext); isFile(p) {
			return p, false, nil
		}
	}
	return "", false, &NotFoundError{Specifier: specifier, Importer: importer}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
