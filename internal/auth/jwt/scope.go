package jwt

import (
	"sort"
	"strings"
)

// ScopeSet is an unordered set of OAuth scope names.
type ScopeSet map[string]struct{}

// NewScopeSet creates a set from individual scope names. Empty names are ignored.
func NewScopeSet(scopes ...string) ScopeSet {
	s := make(ScopeSet, len(scopes))
	for _, scope := range scopes {
		if scope != "" {
			s[scope] = struct{}{}
		}
	}
	return s
}

// ParseScopes splits a space-delimited scope string.
func ParseScopes(s string) ScopeSet {
	return NewScopeSet(strings.Fields(s)...)
}

// Contains reports whether scope is in the set.
func (s ScopeSet) Contains(scope string) bool {
	_, ok := s[scope]
	return ok
}

// IsSupersetOf reports whether s holds every scope of other.
func (s ScopeSet) IsSupersetOf(other ScopeSet) bool {
	for scope := range other {
		if !s.Contains(scope) {
			return false
		}
	}
	return true
}

// Len returns the number of scopes.
func (s ScopeSet) Len() int {
	return len(s)
}

// Slice returns the scopes in sorted order.
func (s ScopeSet) Slice() []string {
	out := make([]string, 0, len(s))
	for scope := range s {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// String returns the space-delimited form.
func (s ScopeSet) String() string {
	return strings.Join(s.Slice(), " ")
}
