package watch

import (
	"path"
	"path/filepath"
	"strings"
)

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".pageforge",
	"*.tmp",
	"*.swp",
	"*.swx",
	"*~",
	".DS_Store",
}

// shouldIgnore matches rel, a root-relative path, against patterns. A bare
// name matches any path segment, a glob without a separator matches the
// base name, and a pattern with a separator matches whole segments.
func shouldIgnore(patterns []string, rel string) bool {
	name := filepath.Base(rel)
	normalized := filepath.ToSlash(rel)

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}

		hasPathSep := strings.ContainsAny(pattern, `/\`)
		if strings.ContainsAny(pattern, "*?[") {
			if hasPathSep {
				if ok, _ := path.Match(filepath.ToSlash(pattern), normalized); ok {
					return true
				}
			} else if ok, _ := filepath.Match(pattern, name); ok {
				return true
			}
			continue
		}

		if hasPathSep {
			if containsSegments(normalized, filepath.ToSlash(pattern)) {
				return true
			}
			continue
		}
		for _, part := range splitSegments(normalized) {
			if part == pattern {
				return true
			}
		}
	}
	return false
}

func containsSegments(p, pattern string) bool {
	parts := splitSegments(p)
	want := splitSegments(pattern)
	if len(want) == 0 || len(want) > len(parts) {
		return false
	}
outer:
	for i := 0; i <= len(parts)-len(want); i++ {
		for j := range want {
			if parts[i+j] != want[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

func splitSegments(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
