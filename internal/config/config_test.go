package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/pageforge/internal/errors"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func errorCode(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestNew(t *testing.T) {
	cfg := New("/project")

	if cfg.Dev.Port != DefaultPort {
		t.Errorf("Dev.Port = %d, want %d", cfg.Dev.Port, DefaultPort)
	}
	if cfg.Cache.RenderCapacity != 512 {
		t.Errorf("Cache.RenderCapacity = %d, want 512", cfg.Cache.RenderCapacity)
	}
	if cfg.Cache.IncrementalCapacity != 1024 {
		t.Errorf("Cache.IncrementalCapacity = %d, want 1024", cfg.Cache.IncrementalCapacity)
	}
	if d, _ := cfg.DebounceDuration(); d != 50*time.Millisecond {
		t.Errorf("debounce = %v, want 50ms", d)
	}
	if !cfg.WatchEnabled() || !cfg.JSXEnabled() {
		t.Error("watcher and JSX should be enabled by default")
	}
	if cfg.RescanEachRequest() {
		t.Error("RescanEachRequest should be off while the watcher runs")
	}
	if got := cfg.PagesPath(); got != filepath.Join("/project", "pages") {
		t.Errorf("PagesPath() = %q", got)
	}
	if got := cfg.CompileCachePath(); got != filepath.Join("/project", ".pageforge", "compile-cache") {
		t.Errorf("CompileCachePath() = %q", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(dir, LoadOptions{Lookup: noEnv}); errorCode(err) != "E141" {
		t.Fatalf("missing config: err = %v, want E141", err)
	}

	writeFile(t, dir, ConfigFileName, `{
  "pagesDir": "src/pages",
  "extensions": [".jsx"],
  "cache": {"renderCapacity": 8, "coalesceRegeneration": true},
  "watch": {"enabled": false, "backend": "poll", "debounce": "10ms"},
  "jsx": {"pragma": "h", "fragment": "Fragment"},
  "compileCache": {"s3": {"bucket": "b", "prefix": "p/"}},
  "dev": {"port": 8080}
}
`)

	cfg, err := Load(dir, LoadOptions{Lookup: noEnv})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Path() != filepath.Join(dir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
	if cfg.PagesPath() != filepath.Join(dir, "src", "pages") {
		t.Errorf("PagesPath() = %q", cfg.PagesPath())
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != ".jsx" {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.Cache.RenderCapacity != 8 || cfg.Cache.IncrementalCapacity != DefaultIncrementalCapacity {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.Cache.CoalesceRegeneration {
		t.Error("CoalesceRegeneration should be true")
	}
	if cfg.WatchEnabled() {
		t.Error("explicit watch.enabled=false should survive defaults")
	}
	if !cfg.RescanEachRequest() {
		t.Error("RescanEachRequest should be on in development without a watcher")
	}
	if cfg.JSX.Pragma != "h" || cfg.JSX.Fragment != "Fragment" {
		t.Errorf("JSX = %+v", cfg.JSX)
	}
	if cfg.CompileCache.S3 == nil || cfg.CompileCache.S3.Bucket != "b" {
		t.Errorf("CompileCache.S3 = %+v", cfg.CompileCache.S3)
	}
	if cfg.DevAddress() != "localhost:8080" {
		t.Errorf("DevAddress() = %q", cfg.DevAddress())
	}
}

func TestLoadAllowMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, LoadOptions{AllowMissing: true, Lookup: noEnv})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
	if cfg.PagesPath() != filepath.Join(dir, DefaultPagesDir) {
		t.Errorf("PagesPath() = %q", cfg.PagesPath())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"bad json", `{"pagesDir": `, "E120"},
		{"bad port", `{"dev": {"port": 70000}}`, "E122"},
		{"bad debounce", `{"watch": {"debounce": "soon"}}`, "E120"},
		{"bad backend", `{"watch": {"backend": "inotify"}}`, "E120"},
		{"bad extension", `{"extensions": ["jsx"]}`, "E120"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, ConfigFileName, tt.content)
			_, err := Load(dir, LoadOptions{Lookup: noEnv})
			if got := errorCode(err); got != tt.code {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `{"dev": {"port": 8080}}`)
	writeFile(t, dir, EnvFileName, "PORT=9000\nSSR_CACHE_SIZE=64\nPAGES_DIR=app\n")

	// Process environment wins over .env.
	cfg, err := Load(dir, LoadOptions{Lookup: envMap(map[string]string{
		"ISR_CACHE_SIZE": "32",
		"PAGES_DIR":      "site",
	})})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Dev.Port != 9000 {
		t.Errorf("Dev.Port = %d, want 9000 from .env", cfg.Dev.Port)
	}
	if cfg.Cache.RenderCapacity != 64 {
		t.Errorf("RenderCapacity = %d, want 64", cfg.Cache.RenderCapacity)
	}
	if cfg.Cache.IncrementalCapacity != 32 {
		t.Errorf("IncrementalCapacity = %d, want 32", cfg.Cache.IncrementalCapacity)
	}
	if cfg.PagesDir != "site" {
		t.Errorf("PagesDir = %q, want site", cfg.PagesDir)
	}

	cfg, err = Load(dir, LoadOptions{SkipEnvFile: true, Lookup: noEnv})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dev.Port != 8080 {
		t.Errorf("SkipEnvFile: Dev.Port = %d, want 8080", cfg.Dev.Port)
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []string{"abc", "0", "-4"} {
		_, err := Load(dir, LoadOptions{
			AllowMissing: true,
			Lookup:       envMap(map[string]string{"SSR_CACHE_SIZE": v}),
		})
		if got := errorCode(err); got != "E123" {
			t.Errorf("SSR_CACHE_SIZE=%q: err = %v, want E123", v, err)
		}
	}
}

func TestProduction(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, LoadOptions{
		AllowMissing: true,
		Lookup:       envMap(map[string]string{"PAGEFORGE_ENV": "Production"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Production() {
		t.Fatal("Production() should be true")
	}
	if cfg.WatchEnabled() || cfg.RescanEachRequest() {
		t.Error("production disables the watcher and per-request rescans")
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ConfigFileName, `{}`)
	nested := filepath.Join(root, "pages", "blog")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if got != root {
		t.Errorf("FindProjectRoot() = %q, want %q", got, root)
	}

	if _, err := FindProjectRoot(t.TempDir()); errorCode(err) != "E141" {
		t.Errorf("err = %v, want E141", err)
	}
}
