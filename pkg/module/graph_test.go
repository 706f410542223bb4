package module

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/pageforge/pkg/compilecache"
	"github.com/vango-dev/pageforge/pkg/directive"
	"github.com/vango-dev/pageforge/pkg/jsx"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newTestGraph() *Graph {
	return NewGraph(Options{Compiler: jsx.New(jsx.DefaultOptions())})
}

func TestLoadClientImportingServerFails(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.jsx": "\"use client\";\n" +
			"import { save } from './actions';\n" +
			"export default function Page() { return <button onClick={save}>Save</button>; }\n",
		"actions.js": "\"use server\";\nexport async function save() {}\n",
	})

	g := newTestGraph()
	_, err := g.Load(context.Background(), filepath.Join(dir, "page.jsx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBoundaryViolation)

	var be *BoundaryError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, filepath.Join(dir, "page.jsx"), be.Client)
	assert.Equal(t, filepath.Join(dir, "actions.js"), be.Server)
	assert.Equal(t, "./actions", be.Specifier)
	assert.Equal(t, 2, be.Line)
	assert.Contains(t, err.Error(), "client")
	assert.Contains(t, err.Error(), "server")

	rec, ok := g.Get(filepath.Join(dir, "page.jsx"))
	require.True(t, ok, "records stay loaded")
	assert.False(t, rec.Validated())
}

func TestLoadTransitiveViolation(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.jsx":     "'use client'\nimport util from './lib/util'\nexport default () => <p>{util()}</p>\n",
		"lib/util.js":  "import { db } from '../server/db'\nexport default () => db\n",
		"server/db.js": "'use server'\nexport const db = {}\n",
	})

	_, err := newTestGraph().Load(context.Background(), filepath.Join(dir, "page.jsx"))
	var be *BoundaryError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{
		filepath.Join(dir, "page.jsx"),
		filepath.Join(dir, "lib", "util.js"),
		filepath.Join(dir, "server", "db.js"),
	}, be.Chain)
	assert.Equal(t, filepath.Join(dir, "lib", "util.js"), be.Importer)
	assert.Contains(t, err.Error(), "import chain")
}

func TestLoadAllowedEdges(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "server imports client",
			files: map[string]string{
				"page.jsx":   "'use server'\nimport Button from './button'\nexport default () => <Button />\n",
				"button.jsx": "'use client'\nexport default () => <button />\n",
			},
		},
		{
			name: "untagged imports server",
			files: map[string]string{
				"page.jsx":   "import { save } from './actions'\nexport default () => <form action={save} />\n",
				"actions.js": "'use server'\nexport async function save() {}\n",
			},
		},
		{
			name: "client imports client",
			files: map[string]string{
				"page.jsx":   "'use client'\nimport Button from './button.jsx'\nexport default () => <Button />\n",
				"button.jsx": "'use client'\nexport default () => <button />\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files)
			rec, err := newTestGraph().Load(context.Background(), filepath.Join(dir, "page.jsx"))
			require.NoError(t, err)
			assert.True(t, rec.Validated())
		})
	}
}

func TestLoadCycle(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.js": "import b from './b'\nexport default 1\n",
		"b.js": "const a = require('./a')\nmodule.exports = a\n",
	})

	g := newTestGraph()
	rec, err := g.Load(context.Background(), filepath.Join(dir, "a.js"))
	require.NoError(t, err)
	require.Len(t, rec.Imports, 1)
	assert.Equal(t, filepath.Join(dir, "b.js"), rec.Imports[0].Path)
	assert.Equal(t, 2, g.Len())
}

func TestLoadExternalAndTypeImports(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.tsx": "import React, { useState } from 'react'\n" +
			"import type { Props } from './types'\n" +
			"// import nothing from './commented'\n" +
			"/* require('./also-commented') */\n" +
			"import styles from './page.css'\n" +
			"export default function Page(p: Props) { return <div className={styles.x} /> }\n",
		"page.css": ".x { color: red }\n",
	})

	rec, err := newTestGraph().Load(context.Background(), filepath.Join(dir, "page.tsx"))
	require.NoError(t, err)
	require.Len(t, rec.Imports, 2)

	assert.Equal(t, "react", rec.Imports[0].Specifier)
	assert.True(t, rec.Imports[0].External)
	assert.Empty(t, rec.Imports[0].Path)

	assert.Equal(t, "./page.css", rec.Imports[1].Specifier)
	assert.Equal(t, filepath.Join(dir, "page.css"), rec.Imports[1].Path)
	assert.Equal(t, 5, rec.Imports[1].Line)
}

func TestLoadMissingImport(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.js": "import x from './missing'\n",
	})

	_, err := newTestGraph().Load(context.Background(), filepath.Join(dir, "page.js"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "./missing")

	_, err = newTestGraph().Load(context.Background(), filepath.Join(dir, "nope.js"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadResolvesIndex(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.js":             "import c from './components'\n",
		"components/index.js": "export default 1\n",
	})

	rec, err := newTestGraph().Load(context.Background(), filepath.Join(dir, "page.js"))
	require.NoError(t, err)
	require.Len(t, rec.Imports, 1)
	assert.Equal(t, filepath.Join(dir, "components", "index.js"), rec.Imports[0].Path)
}

func TestLoadCompileError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.jsx": "export default () => <div><span></div>\n",
	})

	_, err := newTestGraph().Load(context.Background(), filepath.Join(dir, "page.jsx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, jsx.ErrCompile)
	var le *LoadError
	assert.ErrorAs(t, err, &le)
}

func TestInvalidateCascadesAndRetags(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.jsx")
	helper := filepath.Join(dir, "helper.js")
	writeFiles(t, dir, map[string]string{
		"page.jsx":  "'use client'\nimport h from './helper'\nexport default () => <p>{h}</p>\n",
		"helper.js": "export default 'ok'\n",
	})

	g := newTestGraph()
	ctx := context.Background()
	_, err := g.Load(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, []string{page}, g.Importers(helper))

	writeFiles(t, dir, map[string]string{
		"helper.js": "'use server'\nexport default 'secret'\n",
	})

	rec, err := g.Load(ctx, page)
	require.NoError(t, err, "without invalidation the old record is served")
	assert.Equal(t, directive.Client, rec.Tag)

	dropped := g.Invalidate(helper)
	assert.Equal(t, []string{helper, page}, dropped)
	assert.Equal(t, 0, g.Len())

	_, err = g.Load(ctx, page)
	assert.ErrorIs(t, err, ErrBoundaryViolation)

	h, ok := g.Get(helper)
	require.True(t, ok)
	assert.Equal(t, directive.Server, h.Tag)
}

func TestInvalidateDirectoryDropsContents(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"page.jsx":    "import u from './lib/util'\nexport default () => <p>{u}</p>\n",
		"other.jsx":   "import x from './lib2/x'\nexport default () => <p>{x}</p>\n",
		"lib/util.js": "export default 1\n",
		"lib2/x.js":   "export default 2\n",
	})
	page := filepath.Join(dir, "page.jsx")
	other := filepath.Join(dir, "other.jsx")
	util := filepath.Join(dir, "lib", "util.js")

	g := newTestGraph()
	ctx := context.Background()
	for _, p := range []string{page, other} {
		_, err := g.Load(ctx, p)
		require.NoError(t, err)
	}
	require.Equal(t, 4, g.Len())

	dropped := g.Invalidate(filepath.Join(dir, "lib"))
	assert.Equal(t, []string{util, page}, dropped)
	assert.Equal(t, 2, g.Len())
	_, ok := g.Get(filepath.Join(dir, "lib2", "x.js"))
	assert.True(t, ok, "lib2 shares a name prefix but is not beneath lib")
}

func TestCheckStaleReloadsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.jsx")
	writeFiles(t, dir, map[string]string{
		"page.jsx":  "'use client'\nimport h from './helper'\nexport default () => <p>{h}</p>\n",
		"helper.js": "export default 'ok'\n",
	})

	g := NewGraph(Options{Compiler: jsx.New(jsx.DefaultOptions()), CheckStale: true})
	ctx := context.Background()
	first, err := g.Load(ctx, page)
	require.NoError(t, err)

	again, err := g.Load(ctx, page)
	require.NoError(t, err)
	assert.Same(t, first, again, "unchanged content keeps the record")

	writeFiles(t, dir, map[string]string{
		"helper.js": "'use server'\nexport default 'secret'\n",
	})
	_, err = g.Load(ctx, page)
	assert.ErrorIs(t, err, ErrBoundaryViolation)
}

type countingCompiler struct {
	calls atomic.Int32
	inner Compiler
}

func (c *countingCompiler) Compile(src string) (string, error) {
	c.calls.Add(1)
	return c.inner.Compile(src)
}

func TestCompileCacheReuse(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.jsx")
	writeFiles(t, dir, map[string]string{
		"page.jsx": "export default () => <h1>Hi</h1>\n",
	})

	store, err := compilecache.NewMemoryStore(16)
	require.NoError(t, err)
	cc := &countingCompiler{inner: jsx.New(jsx.DefaultOptions())}
	g := NewGraph(Options{Compiler: cc, CodeStore: store, CacheSalt: "test"})
	ctx := context.Background()

	rec, err := g.Load(ctx, page)
	require.NoError(t, err)
	assert.Contains(t, rec.Code, "React.createElement('h1', null, 'Hi')")

	g.Invalidate(page)
	_, err = g.Load(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, int32(1), cc.calls.Load(), "second load reads the compile cache")
	assert.Equal(t, 1, store.Len())
}

func TestScanImports(t *testing.T) {
	code := "import a from 'a'\n" +
		"import {\n  b,\n  c,\n} from \"./bc\"\n" +
		"import './side-effect'\n" +
		"export * from './reexport'\n" +
		"export { x as y } from './named'\n" +
		"export type { T } from './types'\n" +
		"const d = require('./d')\n" +
		"const e = await import('./e')\n" +
		"const f = __pageforge_require('react')\n" +
		"obj.require('./not-an-import')\n" +
		"const s = \"// not a comment\"; import g from './g'\n" +
		"import a2 from 'a'\n"

	var specs []string
	for _, f := range scanImports(code) {
		specs = append(specs, f.specifier)
	}
	assert.Equal(t, []string{
		"a", "./bc", "./side-effect", "./reexport", "./named",
		"./d", "./e", "react", "./g",
	}, specs)
}

func TestBlankCommentsKeepsOffsets(t *testing.T) {
	code := "a // x\n/* y\nz */b 'c // d'"
	out := blankComments(code)
	assert.Equal(t, len(code), len(out))
	assert.Equal(t, "a     \n    \n    b 'c // d'", out)
}
