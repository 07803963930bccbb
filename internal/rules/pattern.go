package rules

import (
	"path"
	"strings"
)

// matchPattern reports whether urlPath matches a glob pattern.
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use path.Match semantics (* and ?)
func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(urlPath, pattern[1:]) {
		return true
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	// Slash-free patterns also apply to the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}

	return false
}
