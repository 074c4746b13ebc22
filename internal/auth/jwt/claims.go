package jwt

import (
	"fmt"
	"strings"
)

// Standard claim names.
const (
	ClaimIssuer   = "iss"
	ClaimSubject  = "sub"
	ClaimAudience = "aud"
	ClaimScope    = "scope"
	ClaimScp      = "scp"
)

// Claims is the verified claim set of a token, keyed by claim name.
type Claims map[string]any

// Issuer returns the iss claim.
func (c Claims) Issuer() string {
	s, _ := c[ClaimIssuer].(string)
	return s
}

// Subject returns the sub claim.
func (c Claims) Subject() string {
	s, _ := c[ClaimSubject].(string)
	return s
}

// Audience returns the aud claim as a list; a single string becomes one entry.
func (c Claims) Audience() []string {
	return stringList(c[ClaimAudience])
}

// HasAudience reports whether aud is exactly audience. A list matches only
// when it holds that single value.
func (c Claims) HasAudience(audience string) bool {
	aud := c.Audience()
	return len(aud) == 1 && aud[0] == audience
}

// Scopes returns the granted scopes from "scope", falling back to "scp"
// when "scope" is absent or empty. Either may be a space-delimited string
// or a list of strings.
func (c Claims) Scopes() ScopeSet {
	for _, name := range []string{ClaimScope, ClaimScp} {
		var set ScopeSet
		if s, ok := c[name].(string); ok {
			set = ParseScopes(s)
		} else {
			set = NewScopeSet(stringList(c[name])...)
		}
		if set.Len() > 0 {
			return set
		}
	}
	return ScopeSet{}
}

// String returns the named claim formatted as a string. Missing and null
// claims yield "".
func (c Claims) String(name string) string {
	v, ok := c[name]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprint(val)
	case []string:
		return strings.Join(val, " ")
	default:
		return fmt.Sprint(val)
	}
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
