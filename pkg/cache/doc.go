// Package cache holds rendered page output.
//
// Two caches share a bounded least-recently-used eviction strategy:
//
//   - LRU memoizes fully rendered server-side output for an exact
//     (module, path, props) combination. It has no notion of time.
//   - Incremental memoizes output that goes stale after a per-entry TTL and
//     is regenerated synchronously by the next reader. A reverse index from
//     source module to cache keys allows a single changed module to drop
//     exactly the entries it produced.
//
// Both caches are safe for concurrent use. Page logic never runs while a
// cache lock is held.
package cache
