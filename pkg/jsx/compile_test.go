package jsx

import (
	"errors"
	"strings"
	"testing"
)

// bare compiles without prelude or require rewriting so outputs are exact.
var bare = New(Options{Pragma: "h", Fragment: "F"})

func TestCompilePage(t *testing.T) {
	src := `function Page(){ return <div id="x">hi {1+2}</div>; }`
	out, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := `React.createElement('div', {'id': 'x'}, 'hi ', 1+2)`
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
	if strings.Contains(out, "<div") || strings.Contains(out, ", 3)") {
		t.Errorf("JSX not fully compiled or expression evaluated:\n%s", out)
	}
	if !strings.Contains(out, "const React=") {
		t.Errorf("expected React binding prelude:\n%s", out)
	}
}

func TestCompileElements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"self closing host", `<a/>`, `h('a', null)`},
		{"component member", `const x = <Foo.Bar baz={1} />;`, `const x = h(Foo.Bar, {'baz': 1});`},
		{"component identifier", `x = <Card title="t"></Card>`, `x = h(Card, {'title': 't'})`},
		{"bare attribute", `x = <input disabled />`, `x = h('input', {'disabled': true})`},
		{"spread attribute", `x = <div {...props} id="a" />`, `x = h('div', {...props, 'id': 'a'})`},
		{"hyphenated attribute", `x = <div data-id="1" aria-label='l' />`, `x = h('div', {'data-id': '1', 'aria-label': 'l'})`},
		{"fragment", `x = <><a/><b/></>`, `x = h(F, null, h('a', null), h('b', null))`},
		{"custom element", `x = <my-widget />`, `x = h('my-widget', null)`},
		{
			"nested with layout whitespace",
			"x = (\n  <ul>\n    <li>One</li>\n    <li>{item}</li>\n  </ul>\n)",
			"x = (\n  h('ul', null, h('li', null, 'One'), h('li', null, item))\n)",
		},
		{"multiline text", "x = <p>\n  Hello\n  world\n</p>", `x = h('p', null, 'Hello world')`},
		{"inline spaces kept", `x = <p>a {b} c</p>`, `x = h('p', null, 'a ', b, ' c')`},
		{"entities in text", `x = <p>a &amp; b &lt;3</p>`, `x = h('p', null, 'a & b <3')`},
		{"entities in attribute", `x = <p title="&quot;q&quot;" />`, `x = h('p', {'title': '"q"'})`},
		{"apostrophe in text", `x = <p>Don't</p>`, `x = h('p', null, 'Don\'t')`},
		{"comment hole dropped", `x = <p>{/* note */}x</p>`, `x = h('p', null, 'x')`},
		{"empty hole dropped", `x = <p>{ }</p>`, `x = h('p', null)`},
		{
			"jsx inside hole",
			`x = <ul>{items.map(i => <li key={i}>{i}</li>)}</ul>`,
			`x = h('ul', null, items.map(i => h('li', {'key': i}, i)))`,
		},
		{"conditional", `x = cond ? <a/> : <b/>`, `x = cond ? h('a', null) : h('b', null)`},
		{"return", `function f() { return <br/>; }`, `function f() { return h('br', null); }`},
		{"arrow body", `const f = () => <hr/>;`, `const f = () => h('hr', null);`},
		{"element attribute value", `x = <A icon=<b/> />`, `x = h(A, {'icon': h('b', null)})`},
		{"object in attribute", `x = <div style={{color: 'red'}} />`, `x = h('div', {'style': {color: 'red'}})`},
		{"brace in string inside hole", `x = <p>{"}"}</p>`, `x = h('p', null, "}")`},
		{"spread children", `x = <p>{...rest}</p>`, `x = h('p', null, ...rest)`},
		{"jsx in template hole", "s = `${<b/>}`", "s = `${h('b', null)}`"},
		{"after block", "if (x) { y() }\n<div/>;", "if (x) { y() }\nh('div', null);"},
		{"after function body", "function f() {}\n<p>x</p>", "function f() {}\nh('p', null, 'x')"},
		{"after arrow body", "const f = () => { g() }\n<br/>", "const f = () => { g() }\nh('br', null)"},
		{"after else block", "if (a) {} else { b() }\n<i/>", "if (a) {} else { b() }\nh('i', null)"},
		{"object literal then comparison", `ok = {a: 1}.a <b`, `ok = {a: 1}.a <b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bare.Compile(tt.src)
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.src, err)
			}
			if got != tt.want {
				t.Errorf("Compile(%q)\n got: %s\nwant: %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestCompilePassThrough(t *testing.T) {
	sources := []string{
		`if (a < b && c > d) {}`,
		`x = a<b>c`,
		`y = x << 2; z = i <= n; w = i>=0;`,
		`for (let i = 0; i < n; i++) { total += i; }`,
		`const re = /<div>/g;`,
		`const m = s.match(/[/<]a/);`,
		`s = "<div>"; t = '<p>'; u = ` + "`<b>${x < y ? 1 : 2}</b>`",
		"// <div>\n/* <span> */\nconst ok = 1;",
		`a = b / c / d;`,
		`x = y++ / 2 < z;`,
		`const id = <T,>(x: T) => x;`,
		`const f = <T extends object>(x: T) => x;`,
		`module.exports = function () { return 1 < 2; };`,
		`const v = require('react-dom'); const w = mod.require('react');`,
		"if (a) {}\n/<b>/.test(s);",
		`x = {a: 1} < 2`,
		"",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			got, err := Compile(src)
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", src, err)
			}
			if got != src {
				t.Errorf("Compile changed non-JSX source\n got: %s\nwant: %s", got, src)
			}
		})
	}
}

func TestCompileRequireIndirection(t *testing.T) {
	src := "const React = require('react');\nmodule.exports = () => <p/>;\n"
	out, stats, err := New(DefaultOptions()).CompileStats(src)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out, "const React = __pageforge_require('react');") {
		t.Errorf("require not rewritten:\n%s", out)
	}
	if !strings.HasPrefix(out, "const __pageforge_require=") {
		t.Errorf("wrapper prelude missing:\n%s", out)
	}
	if strings.Contains(out, "__PAGEFORGE_REACT__") {
		t.Errorf("React binding injected although source binds react:\n%s", out)
	}
	if stats.RewroteRequires != 1 || stats.Elements != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCompileRequireDoubleQuotes(t *testing.T) {
	out, err := Compile(`const R = require ( "react" );`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `const R = __pageforge_require ( "react" );`) {
		t.Errorf("require not rewritten:\n%s", out)
	}
}

func TestCompileKeepsDirectivesFirst(t *testing.T) {
	src := "\"use client\";\nexport default () => <p/>;\n"
	out, err := Compile(src)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "\"use client\";\nconst __pageforge_require=") {
		t.Errorf("prelude not placed after directive:\n%s", out)
	}
	if !strings.HasSuffix(out, "=React;\nexport default () => React.createElement('p', null);\n") {
		t.Errorf("body not compiled:\n%s", out)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
	}{
		{"unterminated element", `x = <div>`, ErrorUnterminated},
		{"unterminated open tag", `x = <div id="a"`, ErrorUnterminated},
		{"mismatched close", `x = <div></span>`, ErrorMismatchedTag},
		{"fragment closed by tag", `x = <><a/></a>`, ErrorMismatchedTag},
		{"bare attribute value", `x = <div class=foo />`, ErrorAttribute},
		{"non-spread brace attribute", `x = <div {props} />`, ErrorAttribute},
		{"empty attribute expression", `x = <div id={} />`, ErrorAttribute},
		{"unterminated attribute string", `x = <div id="a />`, ErrorAttribute},
		{"unterminated hole", `x = <div>{a</div>`, ErrorUnterminatedExpression},
		{"stray less-than in text", `x = <p>a < b</p>`, ErrorUnterminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Compile(tt.src)
			if err == nil {
				t.Fatalf("Compile(%q) = %q, want error", tt.src, out)
			}
			if out != "" {
				t.Errorf("output emitted alongside error: %q", out)
			}
			if !errors.Is(err, ErrCompile) {
				t.Errorf("errors.Is(err, ErrCompile) = false")
			}
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not *CompileError", err)
			}
			if ce.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s (%v)", ce.Kind, tt.kind, err)
			}
			if ce.Fragment == "" {
				t.Error("Fragment is empty")
			}
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := Compile("const a = 1;\nconst b = <div>\n")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v", err)
	}
	if ce.Line != 2 || ce.Column != 11 {
		t.Errorf("position = %d:%d, want 2:11", ce.Line, ce.Column)
	}
	if !strings.HasPrefix(ce.Fragment, "<div>") {
		t.Errorf("Fragment = %q", ce.Fragment)
	}
	if ce.Kind.Code() != "E400" {
		t.Errorf("Code = %s", ce.Kind.Code())
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := `export default function P({a}) { return <><A {...a}/>{a.b && <i>x</i>}</>; }`
	first, err := Compile(src)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := Compile(src)
		if err != nil || again != first {
			t.Fatalf("run %d differs: %v\n%s\n%s", i, err, again, first)
		}
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hi ", "hi "},
		{"  hi", "  hi"},
		{"\n   \n", ""},
		{" ", ""},
		{"\n  Hello\n  world\n", "Hello world"},
		{"a\tb", "a b"},
		{"line one  \n\n  line two", "line one line two"},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJSString(t *testing.T) {
	got := jsString("a'b\\c\nd\x01")
	want := `'a\'b\\c\nd\x01'`
	if got != want {
		t.Errorf("jsString = %s, want %s", got, want)
	}
}
