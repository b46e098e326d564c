package mdtemplate

import "log/slog"

// CacheMode controls how aggressively a Plan's process-wide caches
// (compiled-plan cache, fetched-document cache, selector-result cache,
// all implemented in the cache package) are consulted. It has no bearing
// on render correctness: a Plan renders identically under any CacheMode.
type CacheMode int

const (
	// CacheNone bypasses every cache: every Compile call parses and
	// optimizes from scratch, every cross-document fetch goes over the
	// wire again.
	CacheNone CacheMode = iota
	// CacheNormal is the default: compiled plans and fetched documents
	// are cached, selector-result caching is left off.
	CacheNormal
	// CacheAggressive additionally memoizes the validation of synthesized
	// binding selectors in the process-wide selector cache, so recompiles
	// of related templates skip re-validating selectors already seen.
	CacheAggressive
)

// TemplateConfig configures how a Plan is compiled and how its ambient
// caches behave. The zero value disables every cache; call
// NewTemplateConfig for the usual defaults.
type TemplateConfig struct {
	CacheMode              CacheMode
	ZeroCopy               bool
	CacheCompiledTemplates bool
	CacheExternalDocuments bool

	// Logger receives debug-level diagnostics for compiled-plan cache hits
	// and fetched-document cache hits. Cache misses, render failures and
	// handler errors are not logged. A nil Logger defaults to
	// slog.Default() each time it is used.
	Logger *slog.Logger
}

// NewTemplateConfig returns the default configuration: CacheNormal,
// zero-copy substitution preferred, both caches on.
func NewTemplateConfig() TemplateConfig {
	return TemplateConfig{
		CacheMode:              CacheNormal,
		ZeroCopy:               true,
		CacheCompiledTemplates: true,
		CacheExternalDocuments: true,
	}
}

// WithCacheMode returns a copy of c with CacheMode set.
func (c TemplateConfig) WithCacheMode(mode CacheMode) TemplateConfig {
	c.CacheMode = mode
	return c
}

// WithZeroCopy returns a copy of c with ZeroCopy set.
func (c TemplateConfig) WithZeroCopy(enabled bool) TemplateConfig {
	c.ZeroCopy = enabled
	return c
}

// WithCompiledTemplateCaching returns a copy of c with
// CacheCompiledTemplates set.
func (c TemplateConfig) WithCompiledTemplateCaching(enabled bool) TemplateConfig {
	c.CacheCompiledTemplates = enabled
	return c
}

// WithExternalDocumentCaching returns a copy of c with
// CacheExternalDocuments set.
func (c TemplateConfig) WithExternalDocumentCaching(enabled bool) TemplateConfig {
	c.CacheExternalDocuments = enabled
	return c
}

// WithLogger returns a copy of c with Logger set.
func (c TemplateConfig) WithLogger(l *slog.Logger) TemplateConfig {
	c.Logger = l
	return c
}

// AggressiveCaching returns a configuration tuned for repeated renders of
// the same small set of templates against high request volume.
func AggressiveCaching() TemplateConfig {
	c := NewTemplateConfig()
	c.CacheMode = CacheAggressive
	return c
}

// NoCaching returns a configuration with every cache disabled, useful in
// tests and for templates compiled exactly once.
func NoCaching() TemplateConfig {
	return TemplateConfig{
		CacheMode:              CacheNone,
		ZeroCopy:               true,
		CacheCompiledTemplates: false,
		CacheExternalDocuments: false,
	}
}

func (c TemplateConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
