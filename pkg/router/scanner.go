package router

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions are the page file extensions recognized by default.
var DefaultExtensions = []string{".js", ".jsx", ".ts", ".tsx"}

// BuildOptions configures route discovery.
type BuildOptions struct {
	// Extensions lists recognized page file extensions, including the dot.
	// Defaults to DefaultExtensions.
	Extensions []string

	// Logger receives duplicate-route warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o BuildOptions) withDefaults() BuildOptions {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Scanner walks a pages directory and produces route entries.
type Scanner struct {
	rootDir string
	opts    BuildOptions
}

// NewScanner creates a new route scanner.
func NewScanner(rootDir string, opts BuildOptions) *Scanner {
	return &Scanner{rootDir: rootDir, opts: opts.withDefaults()}
}

// Scan walks the root in lexical order and returns entries in traversal
// order. A missing root yields no entries. Every malformed file name is
// collected and returned together as *BuildErrors.
func (s *Scanner) Scan() ([]*Entry, error) {
	if _, err := os.Stat(s.rootDir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var entries []*Entry
	var buildErrs []*RouteBuildError

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != s.rootDir && skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}

		ext := filepath.Ext(name)
		if !s.recognized(ext) {
			return nil
		}

		rel, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		pattern := patternFromRel(strings.TrimSuffix(rel, ext))
		segments, names, perr := parsePattern(pattern, path)
		if perr != nil {
			var rbe *RouteBuildError
			if errors.As(perr, &rbe) {
				buildErrs = append(buildErrs, rbe)
				return nil
			}
			return perr
		}

		entries = append(entries, &Entry{
			Pattern:    pattern,
			FilePath:   path,
			RelPath:    rel,
			Segments:   segments,
			ParamNames: names,
			Order:      len(entries),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(buildErrs) > 0 {
		return nil, &BuildErrors{Errors: buildErrs}
	}
	return entries, nil
}

func (s *Scanner) recognized(ext string) bool {
	for _, e := range s.opts.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// Build scans rootDir and returns a sorted, immutable route table.
func Build(rootDir string, opts BuildOptions) (*Table, error) {
	opts = opts.withDefaults()

	entries, err := NewScanner(rootDir, opts).Scan()
	if err != nil {
		return nil, err
	}

	dups := findDuplicates(entries)
	for _, d := range dups {
		opts.Logger.Warn("duplicate route", "shape", d.Shape, "winner", d.Winner, "shadowed", d.Shadowed)
	}

	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	SortBySpecificity(sorted)

	return &Table{root: rootDir, entries: sorted, duplicates: dups}, nil
}
