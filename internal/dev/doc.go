// Package dev provides the development server.
//
// The server owns an engine.Engine and exposes it over HTTP with chi:
//
//	GET  /__pageforge/health       liveness and route count
//	GET  /__pageforge/routes       the current route table as JSON
//	POST /__pageforge/cache/clear  empty the render and incremental caches
//	POST /__pageforge/invalidate   drop incremental entries for ?module=
//	GET  /__pageforge/reload       WebSocket reload channel
//	GET  /metrics                  Prometheus metrics
//	*                              public files, then pages
//
// # Hot Reload Protocol
//
// After the engine handles a filesystem change, connected browsers receive
// one JSON message:
//
//	{"type": "reload"}                 // full page reload
//	{"type": "css", "file": "..."}     // stylesheet-only reload
//	{"type": "error", "error": "..."}  // show the error overlay
//	{"type": "clear"}                  // hide the error overlay
package dev
