// Package config loads pageforge.json and environment overrides.
//
// # Configuration File Structure
//
//	{
//	  "pagesDir": "pages",
//	  "extensions": [".js", ".jsx", ".ts", ".tsx"],
//	  "cache": {
//	    "renderCapacity": 512,
//	    "incrementalCapacity": 1024,
//	    "coalesceRegeneration": false
//	  },
//	  "watch": {
//	    "enabled": true,
//	    "debounce": "50ms",
//	    "backend": "fsnotify",
//	    "ignore": ["*.log"]
//	  },
//	  "jsx": {
//	    "pragma": "React.createElement",
//	    "fragment": "React.Fragment"
//	  },
//	  "compileCache": {
//	    "dir": ".pageforge/compile-cache",
//	    "s3": {"bucket": "my-bucket", "prefix": "pageforge/", "region": "us-east-1"}
//	  },
//	  "dev": {"host": "localhost", "port": 3000}
//	}
//
// # Environment
//
// A .env file next to pageforge.json is read with godotenv. Process
// variables take precedence over it. Recognized keys:
//
//	PORT            dev.port
//	PAGES_DIR       pagesDir
//	SSR_CACHE_SIZE  cache.renderCapacity
//	ISR_CACHE_SIZE  cache.incrementalCapacity
//	PAGEFORGE_ENV   "production" disables the watcher and per-request rescans
package config
