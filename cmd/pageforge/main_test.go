package main

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/pageforge/internal/errors"
	"github.com/vango-dev/pageforge/pkg/jsx"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func code(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

var basicPages = map[string]string{
	"pages/index.jsx":           "export default function Home() { return <h1>Home</h1> }\n",
	"pages/blog/[slug].jsx":     "export default function Post() { return <article /> }\n",
	"pages/docs/[[...path]].js": "module.exports = function Docs() {}\n",
}

func TestRoutes(t *testing.T) {
	root := writeProject(t, basicPages)

	out, err := run(t, "routes", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "PATTERN")
	assert.Contains(t, out, "/blog/[slug]")
	assert.Contains(t, out, "/docs/[[...path]]")

	out, err = run(t, "routes", "--dir", root, "--format", "json")
	require.NoError(t, err)
	var routes []routeView
	require.NoError(t, json.Unmarshal([]byte(out), &routes))
	assert.Len(t, routes, 3)
}

func TestRoutesMissingPagesDir(t *testing.T) {
	_, err := run(t, "routes", "--dir", t.TempDir())
	assert.Equal(t, "E140", code(err))
}

func TestMatch(t *testing.T) {
	root := writeProject(t, basicPages)

	out, err := run(t, "match", "/blog/hello", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "/blog/[slug] -> blog/[slug].jsx")
	assert.Contains(t, out, `slug = "hello"`)

	out, err = run(t, "match", "/blog/hello", "--dir", root, "--format", "json")
	require.NoError(t, err)
	var v routeView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "hello", v.Values["slug"])

	_, err = run(t, "match", "/nope/a/b", "--dir", root)
	assert.Equal(t, "E143", code(err))
}

func TestCompile(t *testing.T) {
	root := writeProject(t, map[string]string{
		"page.jsx":   "export default () => <><b>hi</b></>;\n",
		"broken.jsx": "const x = <div></span>;\n",
	})

	out, err := run(t, "compile", filepath.Join(root, "page.jsx"), "--pragma", "h", "--fragment", "Frag")
	require.NoError(t, err)
	assert.Contains(t, out, "h(Frag, null, h('b', null, 'hi'))")

	_, err = run(t, "compile", filepath.Join(root, "broken.jsx"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, jsx.ErrCompile))
	classified := errors.Classify(err)
	assert.Equal(t, "E401", classified.Code)
	assert.Equal(t, filepath.Join(root, "broken.jsx"), classified.Location.File)

	_, err = run(t, "compile", filepath.Join(root, "missing.jsx"))
	assert.Equal(t, "E144", code(err))
}

func TestCheck(t *testing.T) {
	errors.DisableColors()
	defer errors.EnableColors()

	root := writeProject(t, basicPages)
	out, err := run(t, "check", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "3 pages ok")

	root = writeProject(t, map[string]string{
		"pages/index.jsx":       "import W from '../components/widget';\nexport default () => <W />;\n",
		"components/widget.jsx": "'use client';\nimport { save } from '../server/db';\nexport default () => <button />;\n",
		"server/db.js":          "'use server';\nexport function save() {}\n",
		"pages/about.jsx":       "export default () => <p>about</p>;\n",
	})
	out, err = run(t, "check", "--dir", root)
	assert.Equal(t, "E142", code(err))
	assert.Contains(t, out, "E300")
	assert.Contains(t, out, "widget.jsx:2")

	out, _ = run(t, "check", "--dir", root, "--format", "json")
	var report struct {
		Pages  int         `json:"pages"`
		Failed []checkView `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Pages)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "/", report.Failed[0].Pattern)
	assert.Equal(t, "E300", report.Failed[0].Code)
}

func TestConfigDrivesEngine(t *testing.T) {
	root := writeProject(t, map[string]string{
		"pageforge.json": `{"pagesDir": "site", "extensions": [".jsx"]}`,
		"site/a.jsx":     "export default () => <a />;\n",
		"site/b.js":      "module.exports = 1;\n",
	})
	out, err := run(t, "routes", "--dir", root, "--format", "json")
	require.NoError(t, err)
	var routes []routeView
	require.NoError(t, json.Unmarshal([]byte(out), &routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "/a", routes[0].Pattern)

	_, err = os.Stat(filepath.Join(root, ".pageforge", "compile-cache"))
	assert.NoError(t, err, "compile cache directory is created")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "version", "--format", "yaml")
	assert.Equal(t, "E147", code(err))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pageforge "+version))
}
