package proxy

import (
	"fmt"
	"net/url"
	"strconv"
)

// UserField is the payload key carrying the caller identity.
const UserField = "user"

// ProjectIdentity sets the user field to identity in every container that is
// present: non-empty params, a non-nil JSON object and non-empty form. Absent
// containers stay absent and an empty identity changes nothing. Caller
// supplied user values are overwritten.
func ProjectIdentity(identity string, params url.Values, body map[string]any, form url.Values) (url.Values, map[string]any, url.Values) {
	if identity == "" {
		return params, body, form
	}
	if len(params) > 0 {
		params.Set(UserField, identity)
	}
	if body != nil {
		body[UserField] = identity
	}
	if len(form) > 0 {
		form.Set(UserField, identity)
	}
	return params, body, form
}

// IdentityFromClaims returns the named claim as a string. Missing, null and
// empty claims yield "".
func IdentityFromClaims(claims map[string]any, claimName string) string {
	if claimName == "" {
		return ""
	}
	v, ok := claims[claimName]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
