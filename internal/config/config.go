package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vango-dev/pageforge/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "pageforge.json"

	// EnvFileName is the dotenv file read next to the configuration file.
	EnvFileName = ".env"

	DefaultPort = 3000
	DefaultHost = "localhost"

	DefaultPagesDir            = "pages"
	DefaultPublicDir           = "public"
	DefaultRenderCapacity      = 512
	DefaultIncrementalCapacity = 1024
	DefaultDebounce            = "50ms"
	DefaultCompileCacheDir     = ".pageforge/compile-cache"
	DefaultPragma              = "React.createElement"
	DefaultFragment            = "React.Fragment"

	// EnvProduction is the PAGEFORGE_ENV value that turns off development
	// behaviour.
	EnvProduction = "production"
)

// DefaultExtensions are the page file extensions recognized by default.
var DefaultExtensions = []string{".js", ".jsx", ".ts", ".tsx"}

// Config represents pageforge.json after defaults and environment
// overrides have been applied.
type Config struct {
	PagesDir   string   `json:"pagesDir,omitempty"`
	PublicDir  string   `json:"publicDir,omitempty"`
	Extensions []string `json:"extensions,omitempty"`

	Cache        CacheConfig        `json:"cache"`
	Watch        WatchConfig        `json:"watch"`
	JSX          JSXConfig          `json:"jsx"`
	CompileCache CompileCacheConfig `json:"compileCache"`
	Dev          DevConfig          `json:"dev"`

	// Env is the PAGEFORGE_ENV value. Not read from the file.
	Env string `json:"-"`

	configPath string
	dir        string
}

// CacheConfig sizes the render and incremental caches.
type CacheConfig struct {
	RenderCapacity       int  `json:"renderCapacity,omitempty"`
	IncrementalCapacity  int  `json:"incrementalCapacity,omitempty"`
	CoalesceRegeneration bool `json:"coalesceRegeneration,omitempty"`
}

// WatchConfig controls the filesystem watcher.
type WatchConfig struct {
	// Enabled is a pointer so that an explicit false in the file survives
	// defaulting.
	Enabled  *bool    `json:"enabled,omitempty"`
	Debounce string   `json:"debounce,omitempty"`
	Backend  string   `json:"backend,omitempty"`
	Ignore   []string `json:"ignore,omitempty"`
}

// JSXConfig controls the JSX compiler.
type JSXConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Pragma   string `json:"pragma,omitempty"`
	Fragment string `json:"fragment,omitempty"`
}

// CompileCacheConfig locates the compiled output caches.
type CompileCacheConfig struct {
	// Dir is the on-disk cache. Empty disables it.
	Dir string    `json:"dir,omitempty"`
	S3  *S3Config `json:"s3,omitempty"`
}

// S3Config enables the remote compile cache when Bucket is set.
type S3Config struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`
}

// DevConfig contains development server settings.
type DevConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// LoadOptions controls Load.
type LoadOptions struct {
	// AllowMissing returns defaults when pageforge.json does not exist.
	AllowMissing bool

	// SkipEnvFile ignores the .env file.
	SkipEnvFile bool

	// Lookup reads process environment variables. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// New creates a Config with default values rooted at dir.
func New(dir string) *Config {
	c := &Config{dir: dir}
	c.applyDefaults()
	return c
}

// Load reads pageforge.json from dir, then applies .env and environment
// overrides. Variables already set in the process environment win over the
// .env file.
func Load(dir string, opts LoadOptions) (*Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, ConfigFileName)

	cfg := &Config{dir: dir}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse pageforge.json: " + err.Error()).
				WithSuggestion("Check that pageforge.json is valid JSON").
				Wrap(err)
		}
		cfg.configPath = path
	case os.IsNotExist(err):
		if !opts.AllowMissing {
			return nil, errors.New("E141").
				WithDetail("No pageforge.json found in " + dir)
		}
	default:
		return nil, errors.New("E120").Wrap(err)
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if !opts.SkipEnvFile {
		file, err := godotenv.Read(filepath.Join(dir, EnvFileName))
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.New("E120").
				WithDetail("Failed to read .env: " + err.Error()).
				Wrap(err)
		}
		if len(file) > 0 {
			lookup = layeredLookup(lookup, file)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func layeredLookup(primary func(string) (string, bool), file map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PAGES_DIR"); ok {
		c.PagesDir = v
	}
	if v, ok := get("PAGEFORGE_ENV"); ok {
		c.Env = strings.ToLower(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Dev.Port},
		{"SSR_CACHE_SIZE", &c.Cache.RenderCapacity},
		{"ISR_CACHE_SIZE", &c.Cache.IncrementalCapacity},
	}
	for _, o := range ints {
		v, ok := get(o.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.New("E123").
				WithDetail(o.key + "=" + v + " is not a positive integer")
		}
		*o.dst = n
	}
	return nil
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.PagesDir == "" {
		c.PagesDir = DefaultPagesDir
	}
	if c.PublicDir == "" {
		c.PublicDir = DefaultPublicDir
	}
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), DefaultExtensions...)
	}

	if c.Cache.RenderCapacity == 0 {
		c.Cache.RenderCapacity = DefaultRenderCapacity
	}
	if c.Cache.IncrementalCapacity == 0 {
		c.Cache.IncrementalCapacity = DefaultIncrementalCapacity
	}

	if c.Watch.Enabled == nil {
		on := true
		c.Watch.Enabled = &on
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Watch.Backend == "" {
		c.Watch.Backend = "fsnotify"
	}

	if c.JSX.Enabled == nil {
		on := true
		c.JSX.Enabled = &on
	}
	if c.JSX.Pragma == "" {
		c.JSX.Pragma = DefaultPragma
	}
	if c.JSX.Fragment == "" {
		c.JSX.Fragment = DefaultFragment
	}

	if c.CompileCache.Dir == "" {
		c.CompileCache.Dir = DefaultCompileCacheDir
	}

	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 1 || c.Dev.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 1 and 65535, got " + strconv.Itoa(c.Dev.Port))
	}
	if c.Cache.RenderCapacity < 0 || c.Cache.IncrementalCapacity < 0 {
		return errors.New("E121").
			WithDetail("Cache capacities must be positive")
	}
	if _, err := c.DebounceDuration(); err != nil {
		return errors.New("E120").
			WithDetail("watch.debounce: " + err.Error()).
			Wrap(err)
	}
	switch c.Watch.Backend {
	case "fsnotify", "poll":
	default:
		return errors.New("E120").
			WithDetail("watch.backend must be \"fsnotify\" or \"poll\", got " + strconv.Quote(c.Watch.Backend))
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.New("E120").
				WithDetail("extension " + strconv.Quote(ext) + " must start with a dot")
		}
	}
	return nil
}

// Path returns the path where the config was loaded from, or "" when
// defaults were used.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project root.
func (c *Config) Dir() string {
	return c.dir
}

// Production reports whether PAGEFORGE_ENV is production.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// WatchEnabled reports whether the dev server should start the watcher.
func (c *Config) WatchEnabled() bool {
	return !c.Production() && c.Watch.Enabled != nil && *c.Watch.Enabled
}

// RescanEachRequest reports whether routes should be rebuilt per request:
// development with the watcher turned off.
func (c *Config) RescanEachRequest() bool {
	return !c.Production() && !c.WatchEnabled()
}

// JSXEnabled reports whether page sources are compiled.
func (c *Config) JSXEnabled() bool {
	return c.JSX.Enabled == nil || *c.JSX.Enabled
}

// DebounceDuration parses Watch.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Watch.Debounce)
}

// PagesPath returns the absolute path to the pages directory.
func (c *Config) PagesPath() string {
	return c.resolve(c.PagesDir)
}

// PublicPath returns the absolute path to the public directory.
func (c *Config) PublicPath() string {
	return c.resolve(c.PublicDir)
}

// CompileCachePath returns the absolute on-disk compile cache directory.
func (c *Config) CompileCachePath() string {
	if c.CompileCache.Dir == "" {
		return ""
	}
	return c.resolve(c.CompileCache.Dir)
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from startDir to the directory containing
// pageforge.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E141").
				WithDetail("No pageforge.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
