package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vango-dev/pageforge/internal/config"
	"github.com/vango-dev/pageforge/internal/errors"
	"github.com/vango-dev/pageforge/pkg/compilecache"
	"github.com/vango-dev/pageforge/pkg/engine"
	"github.com/vango-dev/pageforge/pkg/jsx"
	"github.com/vango-dev/pageforge/pkg/watch"
)

// memoryCacheEntries bounds the in-process compile cache layer.
const memoryCacheEntries = 1024

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadProject reads configuration for dir, with pagesDir overridden by a
// positional argument when given. A project without pageforge.json runs on
// defaults.
func loadProject(dir, pagesArg string) (*config.Config, error) {
	cfg, err := config.Load(dir, config.LoadOptions{AllowMissing: true})
	if err != nil {
		return nil, err
	}
	if pagesArg != "" {
		cfg.PagesDir = pagesArg
		if !filepath.IsAbs(pagesArg) {
			// Positional directories are relative to the working directory.
			if wd, err := os.Getwd(); err == nil {
				cfg.PagesDir = filepath.Join(wd, pagesArg)
			}
		}
	}
	info, err := os.Stat(cfg.PagesPath())
	if err != nil || !info.IsDir() {
		return nil, errors.New("E140").WithDetail("No pages directory at " + cfg.PagesPath())
	}
	return cfg, nil
}

func compilerFor(cfg *config.Config) *jsx.Compiler {
	opts := jsx.DefaultOptions()
	opts.Pragma = cfg.JSX.Pragma
	opts.Fragment = cfg.JSX.Fragment
	return jsx.New(opts)
}

// compileCacheSalt changes compile cache keys whenever code generation
// settings change.
func compileCacheSalt(cfg *config.Config) string {
	return cfg.JSX.Pragma + "|" + cfg.JSX.Fragment + "|" + version
}

// codeStore layers an in-memory cache over the on-disk cache and, when a
// bucket is configured, S3.
func codeStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (compilecache.Store, error) {
	mem, err := compilecache.NewMemoryStore(memoryCacheEntries)
	if err != nil {
		return nil, err
	}
	stores := []compilecache.Store{mem}

	if dir := cfg.CompileCachePath(); dir != "" {
		disk, err := compilecache.NewDiskStore(dir)
		if err != nil {
			logger.Warn("compile cache directory unavailable", "dir", dir, "error", err)
		} else {
			stores = append(stores, disk)
		}
	}

	if s3 := cfg.CompileCache.S3; s3 != nil && s3.Bucket != "" {
		remote, err := compilecache.NewS3StoreFromConfig(ctx, s3.Bucket, s3.Prefix, s3.Region)
		if err != nil {
			return nil, errors.New("E121").WithDetail("compileCache.s3: " + err.Error()).Wrap(err)
		}
		stores = append(stores, remote)
		logger.Info("remote compile cache enabled", "bucket", s3.Bucket, "prefix", s3.Prefix)
	}
	return compilecache.NewLayered(stores...), nil
}

// engineOptions translates configuration into engine options.
func engineOptions(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Options, error) {
	opts := engine.Options{
		PagesDir:             cfg.PagesPath(),
		Extensions:           cfg.Extensions,
		RenderCapacity:       cfg.Cache.RenderCapacity,
		IncrementalCapacity:  cfg.Cache.IncrementalCapacity,
		CoalesceRegeneration: cfg.Cache.CoalesceRegeneration,
		DisableCompile:       !cfg.JSXEnabled(),
		CacheSalt:            compileCacheSalt(cfg),
		WatchRoot:            cfg.Dir(),
		RescanEachRequest:    cfg.RescanEachRequest(),
		Logger:               logger,
	}
	if cfg.JSXEnabled() {
		opts.Compiler = compilerFor(cfg)
		store, err := codeStore(ctx, cfg, logger)
		if err != nil {
			return engine.Options{}, err
		}
		opts.CodeStore = store
	}

	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return engine.Options{}, err
	}
	opts.Watch = watch.Options{
		Debounce:     debounce,
		Backend:      watch.Backend(cfg.Watch.Backend),
		PollInterval: 100 * time.Millisecond,
		Ignore:       append(append([]string(nil), watch.DefaultIgnore...), cfg.Watch.Ignore...),
	}
	return opts, nil
}
