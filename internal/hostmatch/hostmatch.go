// Package hostmatch implements wildcard hostname matching with specificity
// scoring, used by the policy engine to arbitrate between allow and deny
// rules.
package hostmatch

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher tests hostnames against a fixed set of wildcard patterns.
// A Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	patterns []string
}

// InvalidPatternError reports a pattern rejected at compile time.
type InvalidPatternError struct {
	Pattern string
	Reason  string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid host pattern %q: %s", e.Pattern, e.Reason)
}

// Compile validates and compiles a list of wildcard host patterns.
// Patterns containing "**", NUL, or newline are rejected. "*" matches
// zero or more characters anywhere in the pattern (including across
// label boundaries); "?" matches exactly one character.
func Compile(patterns []string) (*Matcher, error) {
	compiled := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if err := validatePattern(p); err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return &Matcher{patterns: compiled}, nil
}

// ValidatePattern reports whether a single host wildcard pattern is
// well-formed, without compiling a Matcher. Used by config validation
// to surface pattern errors at load time, before any Matcher exists.
func ValidatePattern(p string) error {
	return validatePattern(p)
}

func validatePattern(p string) error {
	if strings.Contains(p, "**") {
		return &InvalidPatternError{Pattern: p, Reason: "recursive glob \"**\" is not a valid host wildcard"}
	}
	if strings.ContainsRune(p, 0) {
		return &InvalidPatternError{Pattern: p, Reason: "contains NUL byte"}
	}
	if strings.ContainsAny(p, "\n\r") {
		return &InvalidPatternError{Pattern: p, Reason: "contains newline"}
	}
	if !doublestar.ValidatePattern(p) {
		return &InvalidPatternError{Pattern: p, Reason: "not a valid glob pattern"}
	}
	return nil
}

// Matches reports whether host matches any compiled pattern.
func (m *Matcher) Matches(host string) bool {
	for _, p := range m.patterns {
		if matchOne(p, host) {
			return true
		}
	}
	return false
}

// MatchesWithSpecificity reports whether host matches any compiled
// pattern and, if so, the specificity of the match: the number of
// dot-separated labels in host. When multiple patterns match, the
// highest specificity wins (they're all equal to len(labels) of the
// same host, so in practice this is just len(labels) once any pattern
// matches).
func (m *Matcher) MatchesWithSpecificity(host string) (specificity int, ok bool) {
	for _, p := range m.patterns {
		if matchOne(p, host) {
			return specificityOf(host), true
		}
	}
	return 0, false
}

func matchOne(pattern, host string) bool {
	// doublestar treats "/" as a path separator; host patterns have none,
	// so a plain doublestar.Match behaves like a single-level glob here.
	ok, err := doublestar.Match(pattern, host)
	if err != nil {
		return false
	}
	return ok
}

func specificityOf(host string) int {
	if host == "" {
		return 0
	}
	return strings.Count(host, ".") + 1
}
