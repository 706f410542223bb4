// Package router implements file-based page routing for pageforge.
//
// The router provides:
//   - Route discovery from a pages directory
//   - Bracket segment parsing (dynamic, catch-all, optional)
//   - Specificity ordering so the most literal route wins
//   - Copy-and-swap tables so rescans never disturb in-flight matches
//
// # File Structure Convention
//
// Routes are defined by source files in the pages directory:
//
//	pages/
//	├── index.jsx              → /
//	├── about.js               → /about
//	├── blog/
//	│   ├── index.tsx          → /blog
//	│   └── [slug].jsx         → /blog/:slug
//	├── docs/
//	│   └── [...path].js       → /docs/* (one or more segments)
//	└── shop/
//	    └── [[...filters]].js  → /shop, /shop/* (zero or more segments)
//
// # Segments
//
//	about         static, matched literally
//	[id]          dynamic, exactly one segment
//	[[id]]        optional, one segment or absent when trailing
//	[...slug]     catch-all, one or more trailing segments
//	[[...slug]]   optional catch-all, zero or more trailing segments
//
// Catch-all values are exposed joined with "/". An optional catch-all that
// captured nothing leaves its parameter absent from the map.
//
// # Usage
//
//	m, err := router.NewMatcher("pages", router.BuildOptions{})
//	if err != nil {
//	    return err
//	}
//	match, ok := m.Match("/blog/hello-world")
//	if ok {
//	    // match.FilePath == "pages/blog/[slug].jsx"
//	    // match.Params["slug"] == "hello-world"
//	}
package router
