package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid pageforge.json",
		Detail:   "The pageforge.json configuration file is malformed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Missing required configuration",
		Detail:   "A required configuration value is not set.",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "The configured port number is invalid or already in use.",
	},
	"E123": {
		Category:   CategoryConfig,
		Message:    "Invalid environment override",
		Detail:     "An environment variable override could not be parsed.",
		Suggestion: "SSR_CACHE_SIZE and ISR_CACHE_SIZE must be positive integers; PORT must be 1-65535.",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Pages directory not found",
		Detail:   "The pages directory does not exist.",
	},
	"E141": {
		Category:   CategoryCLI,
		Message:    "Not a pageforge project",
		Detail:     "No pageforge.json was found in the current directory or its parents.",
		Suggestion: "Run the command from the project root or pass --dir.",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Check failed",
		Detail:   "One or more pages failed to load.",
	},
	"E143": {
		Category: CategoryCLI,
		Message:  "No route matches",
		Detail:   "No page file matches the requested path.",
	},
	"E144": {
		Category: CategoryCLI,
		Message:  "Source file not found",
		Detail:   "The file passed to the command does not exist.",
	},
	"E145": {
		Category: CategoryCLI,
		Message:  "Dev server failed",
		Detail:   "The development server stopped with an error.",
	},
	"E146": {
		Category: CategoryCLI,
		Message:  "Watcher failed",
		Detail:   "The filesystem watcher could not be started.",
	},
	"E147": {
		Category:   CategoryCLI,
		Message:    "Invalid output format",
		Detail:     "The requested output format is not supported.",
		Suggestion: "Use --format text or --format json.",
	},

	// ============================================
	// Route Build Errors (E200-E219)
	// ============================================

	"E200": {
		Category:   CategoryRoute,
		Message:    "Malformed route segment",
		Detail:     "A page file name has unbalanced or misplaced brackets.",
		Suggestion: "Use [name], [[name]], [...name] or [[...name]] as a whole path segment.",
	},
	"E201": {
		Category:   CategoryRoute,
		Message:    "Catch-all segment must be last",
		Detail:     "A catch-all or optional segment appears before the end of the route.",
		Suggestion: "Move [...name] or [[...name]] to the last path segment.",
	},
	"E202": {
		Category: CategoryRoute,
		Message:  "Empty parameter name",
		Detail:   "A bracketed route segment has no parameter name.",
	},
	"E203": {
		Category:   CategoryRoute,
		Message:    "Duplicate parameter name",
		Detail:     "Two segments in one route declare the same parameter.",
		Suggestion: "Rename one of the parameters so each name is unique within the route.",
	},

	// ============================================
	// Module Graph Errors (E300-E319)
	// ============================================

	"E300": {
		Category:   CategoryBoundary,
		Message:    "Client module imports server module",
		Detail:     "A module marked \"use client\" reaches a module marked \"use server\" through its imports.",
		Suggestion: "Call the server module from a server page and pass the result down as props.",
	},
	"E301": {
		Category:   CategoryBoundary,
		Message:    "Module not found",
		Detail:     "An import could not be resolved to a file.",
		Suggestion: "Check the relative path and extension of the import.",
	},
	"E302": {
		Category: CategoryBoundary,
		Message:  "Module load failed",
		Detail:   "A module file could not be read.",
	},

	// ============================================
	// JSX Compile Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryCompile,
		Message:  "Unterminated JSX element",
		Detail:   "A JSX tag was opened but never closed.",
	},
	"E401": {
		Category:   CategoryCompile,
		Message:    "Mismatched closing tag",
		Detail:     "A JSX closing tag does not match the innermost open tag.",
		Suggestion: "Close tags in the reverse order they were opened.",
	},
	"E402": {
		Category:   CategoryCompile,
		Message:    "Invalid JSX attribute",
		Detail:     "An attribute could not be parsed.",
		Suggestion: "Attribute values must be quoted strings, {expressions} or JSX elements.",
	},
	"E403": {
		Category: CategoryCompile,
		Message:  "Unterminated expression",
		Detail:   "A {expression} inside JSX was never closed.",
	},

	// ============================================
	// Runtime Errors (E500-E519)
	// ============================================

	"E500": {
		Category: CategoryRuntime,
		Message:  "Page execution failed",
		Detail:   "The page's data or render function returned an error.",
	},
	"E501": {
		Category: CategoryRuntime,
		Message:  "Cache key serialization failed",
		Detail:   "Page props could not be serialized into a cache key.",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
