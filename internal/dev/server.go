package dev

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/pageforge/internal/errors"
	"github.com/vango-dev/pageforge/pkg/engine"
)

// CacheHeader carries the cache status (HIT, MISS or STALE) of a served page.
const CacheHeader = "X-Pageforge-Cache"

const defaultShutdownTimeout = 5 * time.Second

// Options configures the development server.
type Options struct {
	// Engine serves pages. Required.
	Engine *engine.Engine

	// Addr is the listen address, e.g. "localhost:3000".
	Addr string

	// PublicDir is served before pages when it exists.
	PublicDir string

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// Reload enables the WebSocket reload channel and script injection.
	Reload bool

	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server is the development server.
type Server struct {
	options Options
	engine  *engine.Engine
	reload  *ReloadServer
	logger  *slog.Logger

	// failing is set after a page error so the next success clears the
	// browser overlay.
	failing atomic.Bool
}

// NewServer creates a server around an engine. With Reload set, the
// server subscribes to the engine's invalidations.
func NewServer(options Options) (*Server, error) {
	if options.Engine == nil {
		return nil, stderrors.New("dev: Engine is required")
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = defaultShutdownTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		options: options,
		engine:  options.Engine,
		logger:  logger.With("component", "dev"),
	}
	if options.Reload {
		s.reload = NewReloadServer(logger)
		s.engine.OnInvalidate(s.reload.HandleInvalidation)
	}
	return s, nil
}

// Reload returns the reload server, or nil when reload is disabled.
func (s *Server) Reload() *ReloadServer { return s.reload }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/__pageforge", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/routes", s.handleRoutes)
		r.Post("/cache/clear", s.handleClear)
		r.Post("/invalidate", s.handleInvalidate)
		if s.reload != nil {
			r.Get("/reload", s.reload.HandleWebSocket)
		}
	})
	if s.options.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.options.Metrics)
	}

	r.NotFound(s.handlePage)
	return r
}

// Run listens on Options.Addr until ctx is cancelled or the process
// receives SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return errors.New("E122").WithDetail(err.Error()).Wrap(err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	s.logger.Info("server running", "url", "http://"+ln.Addr().String(), "pages", s.engine.PagesDir())

	select {
	case err := <-errCh:
		s.closeReload()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()
	// Hijacked WebSocket connections are not closed by Shutdown.
	s.closeReload()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; err == nil {
		err = serveErr
	}
	return err
}

func (s *Server) closeReload() {
	if s.reload != nil {
		s.reload.Close()
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"cache", ww.Header().Get(CacheHeader),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"routes": s.engine.Routes().Len(),
	})
}

// RouteInfo is one row of /__pageforge/routes.
type RouteInfo struct {
	Pattern string   `json:"pattern"`
	File    string   `json:"file"`
	Params  []string `json:"params,omitempty"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := s.engine.Routes().Routes()
	out := make([]RouteInfo, 0, len(routes))
	for _, e := range routes {
		out = append(out, RouteInfo{Pattern: e.Pattern, File: e.RelPath, Params: e.ParamNames})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	render := s.engine.RenderCache().Len()
	incremental := s.engine.IncrementalCache().Len()
	s.engine.Clear()
	writeJSON(w, http.StatusOK, map[string]int{
		"render":      render,
		"incremental": incremental,
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	if module == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "module query parameter is required"})
		return
	}
	if !filepath.IsAbs(module) {
		module = filepath.Join(s.engine.PagesDir(), filepath.FromSlash(module))
	}
	n := s.engine.InvalidateModule(module)
	writeJSON(w, http.StatusOK, map[string]any{"module": module, "removed": n})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.servePublic(w, r) {
		return
	}

	resp, err := s.engine.Serve(r.Context(), engine.Request{Path: r.URL.Path, Query: r.URL.Query()})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !resp.Found {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if s.failing.CompareAndSwap(true, false) && s.reload != nil {
		s.reload.ClearError()
	}

	body := resp.Body
	if s.reload != nil {
		body = injectScript(body)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(CacheHeader, resp.Cache)
	_, _ = w.Write([]byte(body))
}

// servePublic serves a regular file from PublicDir when one matches.
func (s *Server) servePublic(w http.ResponseWriter, r *http.Request) bool {
	if s.options.PublicDir == "" || r.URL.Path == "/" {
		return false
	}
	rel := filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/"))
	if !filepath.IsLocal(rel) {
		return false
	}
	path := filepath.Join(s.options.PublicDir, rel)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	http.ServeFile(w, r, path)
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := errors.Classify(err)
	status := errors.HTTPStatus(err)
	s.logger.Error("page failed", "path", r.URL.Path, "code", e.Code, "error", err)
	s.failing.Store(true)
	if s.reload != nil {
		s.reload.NotifyError(e)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Error</title></head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(e.Error()))
	if e.Location != nil {
		fmt.Fprintf(&b, "<p><code>%s</code></p>\n", html.EscapeString(e.Location.String()))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(e.Detail))
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "<p>Hint: %s</p>\n", html.EscapeString(e.Suggestion))
	}
	b.WriteString("</body>\n</html>\n")

	body := b.String()
	if s.reload != nil {
		body = injectScript(body)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// injectScript inserts DevClientScript before the closing body tag, or
// appends it.
func injectScript(body string) string {
	if i := strings.LastIndex(body, "</body>"); i >= 0 {
		return body[:i] + DevClientScript + body[i:]
	}
	return body + DevClientScript
}
