package mdtemplate

import (
	"time"

	"github.com/go-microdata/mdtemplate/cache"
)

// templateSource is what the parsed-template cache holds: the extracted
// <template> content and the document's <base href>, the two facts
// compilation needs from the outer document.
type templateSource struct {
	content string
	baseURI string
}

// The four process-wide caches. They are pure performance collaborators:
// a Plan compiles and renders identically with every cache disabled
// (CacheMode == CacheNone) or empty.
var (
	templateCache = cache.New[string, templateSource](256, 10*time.Minute, cache.LRU)
	planCache     = cache.New[string, *Plan](256, 10*time.Minute, cache.LRU)
	documentCache = cache.New[string, []byte](64, 5*time.Minute, cache.LRU)
	selectorCache = cache.New[string, struct{}](1024, 0, cache.LFU)
)

// CacheStats reports hit/miss/entry statistics for each process-wide
// cache, keyed by cache name.
func CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"templates": templateCache.Stats(),
		"plans":     planCache.Stats(),
		"documents": documentCache.Stats(),
		"selectors": selectorCache.Stats(),
	}
}

// PurgeCaches empties every process-wide cache. Mostly useful in tests
// and long-running processes that reload templates from disk.
func PurgeCaches() {
	templateCache.Purge()
	planCache.Purge()
	documentCache.Purge()
	selectorCache.Purge()
}
