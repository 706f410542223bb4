package dev

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/pageforge/pkg/engine"
)

var revalidateRe = regexp.MustCompile(`\brevalidate\s*:\s*(\d+)`)

// PreviewRunner is the page runner used when no JavaScript runtime is
// attached. It renders an HTML page describing the matched route, its
// props, and the compiled module so route, boundary and cache behaviour
// can be exercised from a browser.
type PreviewRunner struct {
	// Now stamps rendered pages. Defaults to time.Now.
	Now func() time.Time
}

var _ engine.PageRunner = PreviewRunner{}

// Mode uses engine.DetectMode.
func (PreviewRunner) Mode(_ context.Context, page *engine.Page) (engine.Mode, error) {
	return engine.DetectMode(page.Module), nil
}

// Props returns the default params and query props. Static pages get the
// first `revalidate: N` (seconds) found in the module as their interval.
func (PreviewRunner) Props(_ context.Context, page *engine.Page, req engine.Request) (engine.Props, error) {
	props := engine.DefaultProps(page, req)
	if page.Mode == engine.ModeStatic {
		if m := revalidateRe.FindStringSubmatch(page.Module.Code); m != nil {
			secs, err := strconv.Atoi(m[1])
			if err == nil {
				props.Revalidate = time.Duration(secs) * time.Second
			}
		}
	}
	return props, nil
}

// Render produces the preview document.
func (r PreviewRunner) Render(_ context.Context, page *engine.Page, props engine.Props) (string, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	values, err := json.MarshalIndent(props.Values, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode props: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(page.Match.Route.Pattern))
	b.WriteString("</title></head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(page.Match.Route.Pattern))
	fmt.Fprintf(&b, "<p>file: <code>%s</code> mode: %s tag: %s generated: %s</p>\n",
		html.EscapeString(page.Module.Path),
		page.Mode,
		page.Module.Tag,
		now().UTC().Format(time.RFC3339Nano))
	if props.Revalidate > 0 {
		fmt.Fprintf(&b, "<p>revalidate: %s</p>\n", props.Revalidate)
	}
	fmt.Fprintf(&b, "<h2>props</h2>\n<pre>%s</pre>\n", html.EscapeString(string(values)))
	fmt.Fprintf(&b, "<h2>module</h2>\n<pre>%s</pre>\n", html.EscapeString(page.Module.Code))
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
