package engine

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Pattern matches index names against an engine wildcard expression such as
// "documentation_index*". Only "*" and "?" are meaningful in index names.
type Pattern struct {
	raw string
	g   glob.Glob
}

// CompilePattern compiles an index wildcard.
func CompilePattern(pattern string) (*Pattern, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid index pattern %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, g: g}, nil
}

// Match reports whether name matches.
func (p *Pattern) Match(name string) bool {
	return p.g.Match(name)
}

// String returns the source expression.
func (p *Pattern) String() string {
	return p.raw
}
