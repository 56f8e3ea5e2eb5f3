package grouping

import (
	"fmt"

	"github.com/gobwas/glob"
)

// URLFilter matches the extension's own management pages.
type URLFilter struct {
	patterns []string
	matchers []glob.Glob
}

// NewURLFilter compiles glob patterns such as "chrome-extension://*/tabs.html*".
// Patterns are compiled without separators so * spans path segments.
func NewURLFilter(patterns []string) (*URLFilter, error) {
	f := &URLFilter{
		patterns: make([]string, 0, len(patterns)),
		matchers: make([]glob.Glob, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid management url pattern %q: %w", pattern, err)
		}
		f.patterns = append(f.patterns, pattern)
		f.matchers = append(f.matchers, g)
	}
	return f, nil
}

// Excluded reports whether url belongs to the management UI. A nil filter excludes nothing.
func (f *URLFilter) Excluded(url string) bool {
	if f == nil {
		return false
	}
	for _, m := range f.matchers {
		if m.Match(url) {
			return true
		}
	}
	return false
}

// Patterns returns the compiled patterns.
func (f *URLFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.patterns...)
}
