package filesystem

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Ignorer decides which changed paths must not trigger a build. Patterns
// are regular expressions matched from the start of the path relative to
// the project root, with forward slashes on every platform.
type Ignorer struct {
	patterns []*regexp.Regexp
}

// NewIgnorer compiles patterns. An invalid pattern is an error.
func NewIgnorer(patterns []string) (*Ignorer, error) {
	ign := &Ignorer{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p + `)`)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		ign.patterns = append(ign.patterns, re)
	}
	return ign, nil
}

// Match reports whether the root-relative path rel matches any pattern.
func (i *Ignorer) Match(rel string) bool {
	if i == nil {
		return false
	}
	for _, re := range i.patterns {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// RelPath returns path relative to root using forward slashes. ok is false
// when path lies outside root.
func RelPath(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
