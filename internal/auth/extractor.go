package auth

import (
	"errors"
	"net/http"
	"strings"
)

// AuthorizationHeader is the header carrying the bearer token.
const AuthorizationHeader = "Authorization"

const bearerScheme = "bearer"

// ErrNoCredentials indicates the request carries no bearer token.
var ErrNoCredentials = errors.New("no credentials provided")

// ExtractBearerToken returns the bearer token of r. The scheme is matched
// case-insensitively. Other schemes and empty tokens yield ErrNoCredentials.
func ExtractBearerToken(r *http.Request) (string, error) {
	return ParseBearer(r.Header.Get(AuthorizationHeader))
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoCredentials
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrNoCredentials
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}
