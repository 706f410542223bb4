package engine

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vango-dev/pageforge/pkg/cache"
	"github.com/vango-dev/pageforge/pkg/module"
	"github.com/vango-dev/pageforge/pkg/router"
)

// ErrNoRunner is returned by Serve when Options.Runner is nil.
var ErrNoRunner = errors.New("engine: no page runner configured")

// Mode selects how a page's output is cached.
type Mode uint8

const (
	// ModeServer renders on every request. Output is memoized in the render
	// cache keyed by the computed props.
	ModeServer Mode = iota
	// ModeStatic serves from the incremental cache keyed by route params,
	// regenerating after Props.Revalidate (never, when zero).
	ModeStatic
)

func (m Mode) String() string {
	if m == ModeStatic {
		return "static"
	}
	return "server"
}

var staticPropsRe = regexp.MustCompile(
	`export\s+(?:async\s+)?function\s+getStaticProps\b|export\s+(?:const|let|var)\s+getStaticProps\b|exports\.getStaticProps\s*=`)

// DetectMode classifies a page by its exports: a page exporting
// getStaticProps is static, everything else renders per request.
func DetectMode(rec *module.Record) Mode {
	if staticPropsRe.MatchString(rec.Code) {
		return ModeStatic
	}
	return ModeServer
}

// Request is the part of an HTTP request the engine needs.
type Request struct {
	Path  string
	Query url.Values
}

// Page is a matched and validated page module.
type Page struct {
	Match  router.Match
	Module *module.Record
	Mode   Mode
}

// Props is what a page's data function produced.
type Props struct {
	Values map[string]any

	// Revalidate is the incremental regeneration interval for static
	// pages. Zero keeps the output until invalidated.
	Revalidate time.Duration
}

// DefaultProps mirrors what a page without a data function receives.
func DefaultProps(page *Page, req Request) Props {
	params := make(map[string]any, len(page.Match.Params))
	for k, v := range page.Match.Params {
		params[k] = v
	}
	query := make(map[string]any, len(req.Query))
	for k, v := range req.Query {
		if len(v) == 1 {
			query[k] = v[0]
		} else {
			query[k] = v
		}
	}
	return Props{Values: map[string]any{"params": params, "query": query}}
}

// PageRunner executes page logic. Rendering happens outside the engine;
// the engine only decides when to call it.
type PageRunner interface {
	// Mode reports how the page is cached. Implementations commonly use
	// DetectMode.
	Mode(ctx context.Context, page *Page) (Mode, error)

	// Props runs the page's data function.
	Props(ctx context.Context, page *Page, req Request) (Props, error)

	// Render produces the page body.
	Render(ctx context.Context, page *Page, props Props) (string, error)
}

// Response is the outcome of Serve.
type Response struct {
	// Found is false when no route matched. That is not an error.
	Found bool
	Body  string
	Page  *Page

	// Cache is HIT, MISS or STALE.
	Cache string
}

// Serve resolves req to a page, loads it through the module graph, and
// serves it through the cache its mode selects. Boundary violations,
// compile errors and page failures are returned as errors; a failed
// regeneration leaves any cached entry in place.
func (e *Engine) Serve(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.Serve")
	defer span.End()
	span.SetAttributes(attribute.String("pageforge.path", req.Path))

	resp, err := e.serve(ctx, req)
	mode := ModeServer
	if resp.Page != nil {
		mode = resp.Page.Mode
		span.SetAttributes(
			attribute.String("pageforge.route", resp.Page.Match.Route.Pattern),
			attribute.String("pageforge.mode", mode.String()),
			attribute.String("pageforge.cache", resp.Cache),
		)
	}
	e.metrics.Serve(mode, resp.Cache, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("serve failed", "path", req.Path, "error", err)
		return resp, err
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (e *Engine) serve(ctx context.Context, req Request) (Response, error) {
	if e.opts.Runner == nil {
		return Response{}, ErrNoRunner
	}
	if e.opts.RescanEachRequest {
		if err := e.Rescan(); err != nil {
			return Response{}, err
		}
		e.render.Clear()
	}

	m, ok := e.Match(req.Path)
	if !ok {
		return Response{}, nil
	}

	loadStart := time.Now()
	rec, err := e.graph.Load(ctx, m.FilePath)
	e.metrics.ModuleLoad(time.Since(loadStart), err)
	if err != nil {
		return Response{Found: true}, err
	}

	page := &Page{Match: m, Module: rec}
	page.Mode, err = e.opts.Runner.Mode(ctx, page)
	if err != nil {
		return Response{Found: true, Page: page}, err
	}

	resp := Response{Found: true, Page: page}
	switch page.Mode {
	case ModeStatic:
		resp.Body, resp.Cache, err = e.serveStatic(ctx, page, req)
	default:
		resp.Body, resp.Cache, err = e.serveServer(ctx, page, req)
	}
	return resp, err
}

func (e *Engine) serveServer(ctx context.Context, page *Page, req Request) (string, string, error) {
	props, err := e.opts.Runner.Props(ctx, page, req)
	if err != nil {
		return "", "", err
	}
	key, err := cache.RenderKey(page.Module.Path, page.Match.Path, props.Values)
	if err != nil {
		return "", "", err
	}
	if body, ok := e.render.Get(key); ok {
		return body, cache.StatusHit.String(), nil
	}
	body, err := e.opts.Runner.Render(ctx, page, props)
	if err != nil {
		return "", "", err
	}
	e.render.Set(key, body)
	return body, cache.StatusMiss.String(), nil
}

func (e *Engine) serveStatic(ctx context.Context, page *Page, req Request) (string, string, error) {
	key, err := cache.IncrementalKey(page.Module.Path, page.Match.Path, page.Match.Params)
	if err != nil {
		return "", "", err
	}
	res, err := e.incremental.GetOrRegenerate(ctx, page.Module.Path, key, func(ctx context.Context) (cache.Generated, error) {
		props, err := e.opts.Runner.Props(ctx, page, req)
		if err != nil {
			return cache.Generated{}, err
		}
		body, err := e.opts.Runner.Render(ctx, page, props)
		if err != nil {
			return cache.Generated{}, err
		}
		return cache.Generated{Value: body, TTL: props.Revalidate}, nil
	})
	if err != nil {
		return "", "", err
	}
	return res.Value, res.Status.String(), nil
}
