// Package crawler harvests a tenant's website into embedded content chunks.
//
// A crawl walks same-host links from the tenant's domain root, extracts
// readable text from each page, splits it into overlapping chunks, embeds
// them in batches and atomically replaces the tenant's index.
package crawler

import (
	"strings"
	"time"
)

// Default crawl bounds. Per-request Options may override all of them.
const (
	DefaultMaxPages = 50
	DefaultMaxDepth = 3
	DefaultDelay    = time.Second

	// minContentLength discards near-empty pages; anything shorter after
	// cleanup is navigation noise not worth embedding.
	minContentLength = 100
)

// defaultExcludePatterns disqualify URLs from crawling: admin and auth
// surfaces plus binary/document extensions.
var defaultExcludePatterns = []string{
	"/admin", "/login", "/logout", "/signin", "/signup", "/cart", "/checkout",
	"/wp-admin", "/wp-login",
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".zip", ".tar", ".gz", ".mp3", ".mp4", ".avi", ".mov", ".css", ".js",
	".xml", ".json",
}

// Options configures a single crawl.
type Options struct {
	// MaxPages caps the number of distinct URLs visited.
	MaxPages int

	// MaxDepth caps link-following depth; the root URL is depth zero.
	MaxDepth int

	// ExcludePatterns are substrings disqualifying a URL. Empty slice means
	// use the defaults; to exclude nothing, set a non-matching pattern.
	ExcludePatterns []string

	// IncludePatterns, when non-empty, require a URL to contain at least one
	// of them to be crawled. The root URL is always crawled.
	IncludePatterns []string

	// Delay is the minimum spacing between page navigations.
	Delay time.Duration
}

// withDefaults fills unset fields from package defaults.
func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.ExcludePatterns == nil {
		o.ExcludePatterns = defaultExcludePatterns
	}
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
	return o
}

// allowURL applies the include/exclude pattern test to a URL.
func (o Options) allowURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, pat := range o.ExcludePatterns {
		if pat != "" && strings.Contains(lower, strings.ToLower(pat)) {
			return false
		}
	}
	if len(o.IncludePatterns) == 0 {
		return true
	}
	for _, pat := range o.IncludePatterns {
		if pat != "" && strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

// Result reports the outcome of a crawl.
type Result struct {
	// Success is false only when the crawl failed before processing any page.
	Success bool

	// PagesProcessed counts pages whose content was extracted and chunked.
	PagesProcessed int

	// DocumentsCreated counts chunks written to the store.
	DocumentsCreated int

	// Errors accumulates per-page failures; the crawl continues past them.
	Errors []string
}
